// Package policy provides optional declarative rules applied on top of a
// running engine, such as dry-run rehearsals of a release or blocking
// selected actions outright.
package policy
