package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 5 * time.Minute
)

var (
	hostNameRegex   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.:-]*$`)
	placeholderExpr = regexp.MustCompile(`\{[a-z_]+\}`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a SafeBuilder that runs real commands in the C
// locale, so probe and camera output parses the same on every kiosk.
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{Env: []string{"LC_ALL=C"}})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"fileName": validateFileName,
		"hostName": validateHostName,
	}
}

// validateFileName ensures file paths are safe to hand to external tools
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}

	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}

	return nil
}

// validateHostName accepts host names and IP addresses, nothing that could
// be read as a flag.
func validateHostName(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if !hostNameRegex.MatchString(host) {
		return fmt.Errorf("invalid host: %s", host)
	}
	return nil
}

// Command represents a safe command configuration
type Command struct {
	parent   context.Context
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	if placeholderExpr.MatchString(name) {
		return nil, fmt.Errorf("unexpanded placeholder in command name: %s", name)
	}
	for _, a := range args {
		if m := placeholderExpr.FindString(a); m != "" {
			return nil, fmt.Errorf("unexpanded placeholder %s in argument %q", m, a)
		}
	}

	return &Command{
		parent:   ctx,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// BuildTemplate expands {name} placeholders in argv and builds the result.
func (sb *SafeBuilder) BuildTemplate(ctx context.Context, argv []string, vars map[string]string) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}
	expanded := Expand(argv, vars)
	return sb.Build(ctx, expanded[0], expanded[1:]...)
}

// Expand replaces every {key} in argv with vars[key]. Unknown placeholders
// are left alone so Build can reject them.
func Expand(argv []string, vars map[string]string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = placeholderExpr.ReplaceAllStringFunc(a, func(m string) string {
			if v, ok := vars[strings.Trim(m, "{}")]; ok {
				return v
			}
			return m
		})
	}
	return out
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Run executes the command and returns its combined output.
func (c *Command) Run() ([]byte, error) {
	ctx, cancel := context.WithTimeout(c.parent, c.timeout)
	defer cancel()
	out, err := c.executor.CommandContext(ctx, c.name, c.args...).CombinedOutput() //nolint:gosec // SafeBuilder provides validation
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %v", c.name, c.timeout)
	}
	return out, err
}

// Output executes the command and returns stdout only.
func (c *Command) Output() ([]byte, error) {
	ctx, cancel := context.WithTimeout(c.parent, c.timeout)
	defer cancel()
	out, err := c.executor.CommandContext(ctx, c.name, c.args...).Output() //nolint:gosec // SafeBuilder provides validation
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %v", c.name, c.timeout)
	}
	return out, err
}

// Exec creates and returns an exec.Cmd bound to the parent context only.
// Callers that need the timeout should use Run or Output.
func (c *Command) Exec() *exec.Cmd {
	return c.executor.CommandContext(c.parent, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
}
