package model

// CommandOutput is the captured result of a single remote command.
type CommandOutput struct {
	// Command is the command string as sent to the remote shell.
	Command string
	// Stdout is the decoded standard output.
	Stdout string
	// Stderr is the decoded standard error.
	Stderr string
	// ExitCode is the exit code of the remote command.
	ExitCode int
}

// Size returns the number of captured output bytes.
func (c CommandOutput) Size() int64 {
	return int64(len(c.Stdout) + len(c.Stderr))
}
