// Fragment rendering for terminal output.
//
// Information Hiding:
// - Incremental display tracking hidden (callers pass whole snapshots)
// - Image persistence and styling details hidden

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/loomworks/loom/transcript"
)

var (
	userPromptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	imageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderer prints fragments as they appear in transcript snapshots.
// Snapshots are cumulative, so it tracks how many fragments it has
// already written and only prints the tail.
type renderer struct {
	out      io.Writer
	mediaDir string
	printed  int
}

func newRenderer(out io.Writer, mediaDir string) *renderer {
	return &renderer{out: out, mediaDir: mediaDir}
}

// reset prepares the renderer for a new turn.
func (r *renderer) reset() {
	r.printed = 0
}

// emit is the transcript.EmitFunc: print every fragment not yet shown.
func (r *renderer) emit(snapshot []transcript.Fragment) {
	for _, fragment := range snapshot[r.printed:] {
		r.printFragment(fragment)
	}
	r.printed = len(snapshot)
}

func (r *renderer) printFragment(fragment transcript.Fragment) {
	switch f := fragment.(type) {
	case transcript.TextFragment:
		if f.IsError {
			fmt.Fprintln(r.out, errorStyle.Render(f.Display()))
			return
		}
		fmt.Fprintln(r.out, f.Text)
	case transcript.ImageFragment:
		path, err := r.saveImage(f.Data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save image: %v\n", err)
			fmt.Fprintln(r.out, imageStyle.Render(f.Display()))
			return
		}
		fmt.Fprintln(r.out, imageStyle.Render(fmt.Sprintf("[image saved to %s]", path)))
	default:
		fmt.Fprintln(r.out, fragment.Display())
	}
}

// saveImage writes image bytes to the media directory under a fresh name.
func (r *renderer) saveImage(data []byte) (string, error) {
	if err := os.MkdirAll(r.mediaDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(r.mediaDir, uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// printHistory replays previously saved turns when resuming a session.
func printHistory(out io.Writer, mediaDir string, history []transcript.Turn) {
	r := newRenderer(out, mediaDir)
	for _, turn := range history {
		if turn.Role == transcript.RoleUser {
			fmt.Fprintln(out, userPromptStyle.Render("> ")+turn.Text())
			continue
		}
		r.reset()
		r.emit(turn.Fragments)
	}
	fmt.Fprintln(out)
}
