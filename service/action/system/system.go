// Package system groups actions that touch the host operating system:
// command execution, storage access and secret handling.
package system

// Host identifies the machine a system action operates on. An empty or
// localhost URL selects local execution; anything else is reached over SSH
// with credentials resolved from the secret store.
type Host struct {
	URL         string `json:"url,omitempty" description:"host URL, e.g. ssh://build-01:22 or bash://localhost"`
	Credentials string `json:"credentials,omitempty" description:"secret resource holding SSH credentials"`
}
