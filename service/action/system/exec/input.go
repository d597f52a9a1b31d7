package exec

import (
	"github.com/relforge/tagship/service/action/system"
)

// Input represents a command execution request
type Input struct {
	Host         *system.Host      `json:"host,omitempty" description:"host to execute command on"`
	Directory    string            `json:"directory,omitempty" description:"working directory for the commands"`
	Env          map[string]string `json:"env,omitempty" description:"environment variables to be set before command runs"`
	Commands     []string          `json:"commands,omitempty" description:"commands to execute on the target system"`
	TimeoutMs    int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" description:"max wait time before timing out a command"`
	AbortOnError *bool             `json:"abortOnError,omitempty" description:"stop at the first command exiting with a non-zero status"`
}

func (i *Input) Init() {
	if i.Host == nil {
		i.Host = &system.Host{}
	}
	if i.Host.URL == "" {
		i.Host.URL = "bash://localhost/"
	}
}
