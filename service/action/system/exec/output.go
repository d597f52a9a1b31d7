package exec

// Command holds the outcome of one shell invocation.
type Command struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Stderr string `json:"stderr,omitempty"`
	Status int    `json:"status,omitempty"`
}

// Output aggregates the outcome of an Execute call; Status tracks the last
// command run.
type Output struct {
	Commands []*Command `json:"commands,omitempty"`
	Stdout   string     `json:"stdout,omitempty"`
	Stderr   string     `json:"stderr,omitempty"`
	Status   int        `json:"status,omitempty"`
}

// Append records a command result and folds it into the combined streams.
func (o *Output) Append(command *Command) {
	o.Commands = append(o.Commands, command)
	if command.Output != "" {
		o.Stdout += command.Output + "\n"
	}
	if command.Stderr != "" {
		o.Stderr += command.Stderr + "\n"
	}
	o.Status = command.Status
}
