// Screenshot Tool - captures the current display as a PNG.
//
// Information Hiding:
// - Capture utility discovery hidden (gnome-screenshot, scrot, ImageMagick)
// - Temp file lifecycle hidden
// - Encoding abstracted

package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// captureCommand is one way of producing a screenshot file.
type captureCommand struct {
	binary string
	args   func(path string) []string
}

// Capture utilities in preference order. The first one present on PATH wins.
var captureCommands = []captureCommand{
	{"gnome-screenshot", func(path string) []string { return []string{"-f", path, "-p"} }},
	{"scrot", func(path string) []string { return []string{"-z", path} }},
	{"import", func(path string) []string { return []string{"-window", "root", path} }},
}

// ScreenshotTool captures the display and returns the image base64-encoded.
type ScreenshotTool struct {
	BaseTool
	timeoutSecs uint64
	outputDir   string
}

// NewScreenshotTool creates a new screenshot tool with the given timeout.
func NewScreenshotTool(timeoutSecs uint64) *ScreenshotTool {
	return &ScreenshotTool{
		timeoutSecs: timeoutSecs,
		outputDir:   os.TempDir(),
	}
}

// WithOutputDir sets where capture files are written before encoding.
func (t *ScreenshotTool) WithOutputDir(dir string) *ScreenshotTool {
	t.outputDir = dir
	return t
}

// Metadata returns the tool metadata.
func (t *ScreenshotTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "screenshot",
		Description: "Take a screenshot of the current display",
		Parameters:  []ToolParameter{},
	}
}

// Execute captures the screen with the first available utility.
func (t *ScreenshotTool) Execute(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
	path := filepath.Join(t.outputDir, fmt.Sprintf("screenshot_%s.png", uuid.NewString()))
	defer os.Remove(path)

	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	captured := false
	var lastErr error
	for _, cc := range captureCommands {
		if _, err := exec.LookPath(cc.binary); err != nil {
			continue
		}
		cmd := exec.CommandContext(ctx, cc.binary, cc.args(path)...)
		if output, err := cmd.CombinedOutput(); err != nil {
			lastErr = fmt.Errorf("%s failed: %v (%s)", cc.binary, err, output)
			continue
		}
		captured = true
		break
	}

	if ctx.Err() == context.DeadlineExceeded {
		return FailureResultf("screenshot timed out after %d seconds", t.timeoutSecs), nil
	}
	if !captured {
		if lastErr != nil {
			return FailureResult(lastErr), nil
		}
		return FailureResultf("no screenshot utility available (tried gnome-screenshot, scrot, import)"), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read capture file: %w", err)), nil
	}

	return ImageResult("", base64.StdEncoding.EncodeToString(data)), nil
}

var _ Tool = (*ScreenshotTool)(nil)
