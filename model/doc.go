// Package model defines release pipeline definitions: the Release document,
// its trigger surface (push events matched against ref globs) and the step
// graph executed by a run.
package model
