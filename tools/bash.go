// Bash Tool - shell command execution for the agent.
//
// Information Hiding:
// - Shell invocation details hidden
// - Timeout handling hidden
// - Output truncation abstracted

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxOutputBytes caps tool output before it is handed to the model.
const maxOutputBytes = 64 * 1024

// BashTool executes shell commands via bash -c.
type BashTool struct {
	BaseTool
	timeoutSecs     uint64
	allowedCommands []string
}

// NewBashTool creates a new bash tool with the given timeout.
func NewBashTool(timeoutSecs uint64) *BashTool {
	return &BashTool{
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedCommands sets the allowlist for base commands. Empty means
// all commands are allowed.
func (t *BashTool) WithAllowedCommands(commands []string) *BashTool {
	t.allowedCommands = commands
	return t
}

// Metadata returns the tool metadata.
func (t *BashTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "bash",
		Description: "Run a shell command and return its stdout and stderr",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				ParamType:   "string",
				Description: "The shell command to run",
				Required:    true,
			},
		},
	}
}

type bashArgs struct {
	Command string `json:"command"`
}

// Validate validates the tool arguments.
func (t *BashTool) Validate(args json.RawMessage) error {
	var a bashArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	return nil
}

// Execute runs the command. Stdout becomes the result output; stderr is
// reported through the result error so callers can relay it as a failure.
func (t *BashTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a bashArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if strings.TrimSpace(a.Command) == "" {
		return FailureResultf("command cannot be empty"), nil
	}

	if !t.isCommandAllowed(a.Command) {
		return FailureResultf("command '%s' is not in the allowed list", a.Command), nil
	}

	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", a.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return FailureResultf("command timed out after %d seconds", t.timeoutSecs), nil
	}

	out := truncateOutput(stdout.String())
	errOut := truncateOutput(stderr.String())

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			msg := fmt.Sprintf("command failed with exit code %d", exitErr.ExitCode())
			if errOut != "" {
				msg += "\n" + errOut
			}
			return ToolResult{Output: out, Error: fmt.Errorf("%s", msg)}, nil
		}
		return FailureResult(fmt.Errorf("failed to execute command: %w", err)), nil
	}

	if errOut != "" {
		out += "\n" + errOut
	}
	return SuccessResult(out), nil
}

// isCommandAllowed checks if the base command is in the allowlist.
func (t *BashTool) isCommandAllowed(command string) bool {
	if len(t.allowedCommands) == 0 {
		return true
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}

	for _, allowed := range t.allowedCommands {
		if allowed == fields[0] {
			return true
		}
	}
	return false
}

// truncateOutput caps output size, keeping the head.
func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return strings.TrimRight(s, "\n")
	}
	return s[:maxOutputBytes] + "\n... (output truncated)"
}

var _ Tool = (*BashTool)(nil)
