// Editor Tool - view, create and edit files through one command-dispatched tool.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path validation and security checks hidden
// - Command dispatch internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EditorTool exposes file operations behind a single command parameter,
// the shape tool-using models are trained on.
type EditorTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewEditorTool creates a new editor tool.
func NewEditorTool(maxSizeBytes int64) *EditorTool {
	return &EditorTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *EditorTool) WithAllowedPaths(paths []string) *EditorTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *EditorTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "str_replace_editor",
		Description: "View, create and edit files. Commands: view shows a file or directory, create writes a new file, str_replace replaces a unique string, insert adds text after a line.",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				ParamType:   "string",
				Description: "The operation to perform",
				Required:    true,
				Enum:        []string{"view", "create", "str_replace", "insert"},
			},
			{Name: "path", ParamType: "string", Description: "Absolute path to the file or directory", Required: true},
			{Name: "file_text", ParamType: "string", Description: "Content for the create command", Required: false},
			{Name: "old_str", ParamType: "string", Description: "String to replace (must occur exactly once)", Required: false},
			{Name: "new_str", ParamType: "string", Description: "Replacement string", Required: false},
			{Name: "insert_line", ParamType: "integer", Description: "Line number after which to insert (0 = top of file)", Required: false},
		},
	}
}

type editorArgs struct {
	Command    string `json:"command"`
	Path       string `json:"path"`
	FileText   string `json:"file_text"`
	OldStr     string `json:"old_str"`
	NewStr     string `json:"new_str"`
	InsertLine *int   `json:"insert_line"`
}

// Validate validates the tool arguments.
func (t *EditorTool) Validate(args json.RawMessage) error {
	var a editorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute dispatches on the command.
func (t *EditorTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a editorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	switch a.Command {
	case "view":
		return t.view(a)
	case "create":
		return t.create(a)
	case "str_replace":
		return t.strReplace(a)
	case "insert":
		return t.insert(a)
	default:
		return FailureResultf("unknown command '%s'", a.Command), nil
	}
}

func (t *EditorTool) view(a editorArgs) (ToolResult, error) {
	if !pathAllowed(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("path does not exist: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to stat path: %w", err)), nil
	}

	if info.IsDir() {
		entries, err := os.ReadDir(a.Path)
		if err != nil {
			return FailureResult(fmt.Errorf("failed to read directory: %w", err)), nil
		}
		var names []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		return SuccessResult(strings.Join(names, "\n")), nil
	}

	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	content, err := os.ReadFile(a.Path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}

	return SuccessResult(numberLines(string(content))), nil
}

func (t *EditorTool) create(a editorArgs) (ToolResult, error) {
	if a.FileText == "" {
		return FailureResultf("file_text is required for the create command"), nil
	}
	if int64(len(a.FileText)) > t.maxSizeBytes {
		return FailureResultf("content too large: %d bytes (max: %d bytes)", len(a.FileText), t.maxSizeBytes), nil
	}
	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}
	if _, err := os.Stat(a.Path); err == nil {
		return FailureResultf("file already exists: %s", a.Path), nil
	}

	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
	}
	if err := os.WriteFile(a.Path, []byte(a.FileText), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("File created: %s (%d bytes)", a.Path, len(a.FileText))), nil
}

func (t *EditorTool) strReplace(a editorArgs) (ToolResult, error) {
	if a.OldStr == "" {
		return FailureResultf("old_str is required for the str_replace command"), nil
	}
	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	content, err := t.readForEdit(a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	occurrences := strings.Count(content, a.OldStr)
	if occurrences == 0 {
		return FailureResultf("old_str not found in %s", a.Path), nil
	}
	if occurrences > 1 {
		return FailureResultf("old_str occurs %d times in %s; it must be unique", occurrences, a.Path), nil
	}

	updated := strings.Replace(content, a.OldStr, a.NewStr, 1)
	if err := os.WriteFile(a.Path, []byte(updated), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Replaced 1 occurrence in %s", a.Path)), nil
}

func (t *EditorTool) insert(a editorArgs) (ToolResult, error) {
	if a.InsertLine == nil {
		return FailureResultf("insert_line is required for the insert command"), nil
	}
	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	content, err := t.readForEdit(a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	lines := strings.Split(content, "\n")
	n := *a.InsertLine
	if n < 0 || n > len(lines) {
		return FailureResultf("insert_line %d out of range (file has %d lines)", n, len(lines)), nil
	}

	inserted := append(lines[:n:n], append([]string{a.NewStr}, lines[n:]...)...)
	if err := os.WriteFile(a.Path, []byte(strings.Join(inserted, "\n")), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Inserted text after line %d in %s", n, a.Path)), nil
}

func (t *EditorTool) readForEdit(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > t.maxSizeBytes {
		return "", fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

// numberLines prefixes each line with its 1-based number, the view format
// models expect for later str_replace targeting.
func numberLines(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ Tool = (*EditorTool)(nil)
