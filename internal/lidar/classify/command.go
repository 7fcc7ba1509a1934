package classify

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor runs one external process.
// This abstraction enables unit testing without a PDAL installation.
type CommandExecutor interface {
	// Run executes the command and returns its stdout and stderr.
	Run() (stdout, stderr []byte, err error)

	// SetStdin sets the stdin for the command.
	SetStdin(stdin []byte)
}

// CommandBuilder creates CommandExecutors bound to a context.
type CommandBuilder interface {
	BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command, capturing stdout and stderr separately.
func (r *RealCommandExecutor) Run() ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	r.cmd.Stdout = &stdout
	r.cmd.Stderr = &stderr
	err := r.cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SetStdin sets stdin for the command.
func (r *RealCommandExecutor) SetStdin(stdin []byte) {
	r.cmd.Stdin = bytes.NewReader(stdin)
}

// RealCommandBuilder implements CommandBuilder using exec.CommandContext, so
// cancelling the context kills the process.
type RealCommandBuilder struct{}

// BuildCommand creates a CommandExecutor for the given command and arguments.
func (RealCommandBuilder) BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.CommandContext(ctx, name, args...)}
}

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	// Stdout and Stderr are returned from Run.
	Stdout []byte
	Stderr []byte
	// Err is the error to return from Run.
	Err error
	// OnRun, when set, is called with the stdin data before Run returns;
	// a non-nil result replaces Err.
	OnRun func(stdin []byte) error
	// Stdin holds the stdin data that was set.
	Stdin []byte
	// RunCalled indicates whether Run was called.
	RunCalled bool
}

// Run returns the configured output and error.
func (m *MockCommandExecutor) Run() ([]byte, []byte, error) {
	m.RunCalled = true
	if m.OnRun != nil {
		if err := m.OnRun(m.Stdin); err != nil {
			return m.Stdout, m.Stderr, err
		}
	}
	return m.Stdout, m.Stderr, m.Err
}

// SetStdin records the stdin data.
func (m *MockCommandExecutor) SetStdin(stdin []byte) {
	m.Stdin = stdin
}

// MockBuiltCommand records details of a built command.
type MockBuiltCommand struct {
	Name string
	Args []string
}

// MockCommandBuilder implements CommandBuilder for testing.
type MockCommandBuilder struct {
	// Commands records all commands that were built.
	Commands []MockBuiltCommand
	// Executor is returned for every Build call. If nil, a default
	// MockCommandExecutor is created.
	Executor *MockCommandExecutor
}

// BuildCommand records the command and returns the configured executor.
func (b *MockCommandBuilder) BuildCommand(_ context.Context, name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: name, Args: args})
	if b.Executor == nil {
		b.Executor = &MockCommandExecutor{}
	}
	return b.Executor
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}
