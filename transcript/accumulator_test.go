package transcript

import (
	"context"
	"errors"
	"testing"
)

// scriptedLoop replays a fixed chunk sequence through the callbacks and
// then returns err, standing in for the real agent loop.
type scriptedLoop struct {
	chunks []scriptedChunk
	err    error

	gotPrompt []PromptMessage
	gotOpts   LoopOptions
}

type scriptedChunk struct {
	origin Origin
	chunk  Chunk
}

func (l *scriptedLoop) Run(ctx context.Context, prompt []PromptMessage, cb Callbacks, opts LoopOptions) error {
	l.gotPrompt = prompt
	l.gotOpts = opts
	for _, sc := range l.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch sc.origin {
		case OriginAssistant:
			cb.OnAssistant(sc.chunk)
		case OriginTool:
			cb.OnTool(sc.chunk)
		}
	}
	return l.err
}

func TestRunTurnOneEmissionPerFragment(t *testing.T) {
	loop := &scriptedLoop{chunks: []scriptedChunk{
		{OriginAssistant, TextChunk{Body: "thinking"}},
		{OriginTool, ToolResultChunk{Output: "out", Error: "err"}}, // two fragments
		{OriginAssistant, TextChunk{Body: ""}},                     // zero fragments
		{OriginAssistant, TextChunk{Body: "done"}},
	}}
	acc := NewAccumulator(loop, Policy{}, LoopOptions{})

	var emissions int
	var lastLen int
	turn, err := acc.RunTurn(context.Background(), "go", func(snapshot []Fragment) {
		emissions++
		if len(snapshot) != lastLen+1 {
			t.Errorf("snapshot %d: expected length %d, got %d", emissions, lastLen+1, len(snapshot))
		}
		lastLen = len(snapshot)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emissions != 4 {
		t.Errorf("expected 4 emissions (one per fragment), got %d", emissions)
	}
	if len(turn.Fragments) != 4 {
		t.Errorf("expected 4 committed fragments, got %d", len(turn.Fragments))
	}
}

func TestRunTurnHistoryGrowsByTwo(t *testing.T) {
	for name, loop := range map[string]*scriptedLoop{
		"success": {chunks: []scriptedChunk{{OriginAssistant, TextChunk{Body: "hi"}}}},
		"failure": {err: errors.New("upstream exploded")},
	} {
		acc := NewAccumulator(loop, Policy{}, LoopOptions{}).WithHistory([]Turn{
			{Role: RoleUser, Fragments: []Fragment{TextFragment{Text: "earlier"}}},
			{Role: RoleAssistant, Fragments: []Fragment{TextFragment{Text: "sure"}}},
		})
		before := len(acc.History())

		if _, err := acc.RunTurn(context.Background(), "next", nil); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}

		history := acc.History()
		if len(history) != before+2 {
			t.Errorf("%s: expected history to grow by 2, got %d -> %d", name, before, len(history))
		}
		if history[len(history)-2].Role != RoleUser || history[len(history)-1].Role != RoleAssistant {
			t.Errorf("%s: expected trailing user+assistant pair", name)
		}
	}
}

func TestRunTurnCommitsFragmentsInEmissionOrder(t *testing.T) {
	loop := &scriptedLoop{chunks: []scriptedChunk{
		{OriginAssistant, ToolUseChunk{Name: "screenshot", Input: []byte(`{}`)}},
		{OriginTool, ToolResultChunk{Base64Image: encodedImage()}},
		{OriginAssistant, TextChunk{Body: "Here is the screenshot."}},
	}}
	acc := NewAccumulator(loop, Policy{HideImages: false}, LoopOptions{})

	var streamed []Fragment
	turn, err := acc.RunTurn(context.Background(), "take a screenshot", func(snapshot []Fragment) {
		streamed = snapshot
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(turn.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(turn.Fragments))
	}
	if !containsString(turn.Fragments[0].Display(), "screenshot") {
		t.Errorf("fragment 0: expected tool-use summary, got %q", turn.Fragments[0].Display())
	}
	if _, ok := turn.Fragments[1].(ImageFragment); !ok {
		t.Errorf("fragment 1: expected image, got %T", turn.Fragments[1])
	}
	if turn.Fragments[2].Display() != "Here is the screenshot." {
		t.Errorf("fragment 2: got %q", turn.Fragments[2].Display())
	}

	// The committed turn equals the final snapshot.
	if len(streamed) != len(turn.Fragments) {
		t.Errorf("final snapshot has %d fragments, committed %d", len(streamed), len(turn.Fragments))
	}
}

func TestRunTurnImageSuppression(t *testing.T) {
	loop := &scriptedLoop{chunks: []scriptedChunk{
		{OriginAssistant, ToolUseChunk{Name: "screenshot", Input: []byte(`{}`)}},
		{OriginTool, ToolResultChunk{Base64Image: encodedImage()}},
		{OriginAssistant, TextChunk{Body: "Here is the screenshot."}},
	}}
	acc := NewAccumulator(loop, Policy{HideImages: true}, LoopOptions{})

	turn, err := acc.RunTurn(context.Background(), "take a screenshot", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turn.Fragments) != 2 {
		t.Fatalf("expected 2 fragments with hideImages, got %d", len(turn.Fragments))
	}
	for _, f := range turn.Fragments {
		if _, ok := f.(ImageFragment); ok {
			t.Errorf("image fragment present despite suppression")
		}
	}
}

func TestRunTurnLoopFailureCommitsPartial(t *testing.T) {
	loop := &scriptedLoop{
		chunks: []scriptedChunk{{OriginAssistant, TextChunk{Body: "Working on it..."}}},
		err:    errors.New("connection reset"),
	}
	acc := NewAccumulator(loop, Policy{}, LoopOptions{})

	turn, err := acc.RunTurn(context.Background(), "do the thing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turn.Fragments) != 2 {
		t.Fatalf("expected partial text + error fragment, got %d fragments", len(turn.Fragments))
	}
	if turn.Fragments[0].Display() != "Working on it..." {
		t.Errorf("fragment 0: got %q", turn.Fragments[0].Display())
	}
	last, ok := turn.Fragments[1].(TextFragment)
	if !ok || !last.IsError || !containsString(last.Text, "connection reset") {
		t.Errorf("expected trailing error fragment mentioning the failure, got %#v", turn.Fragments[1])
	}
	if got := len(acc.History()); got != 2 {
		t.Errorf("expected exactly the new user+assistant pair, history has %d turns", got)
	}
}

func TestRunTurnNormalizerErrorDoesNotAbortStream(t *testing.T) {
	loop := &scriptedLoop{chunks: []scriptedChunk{
		{OriginTool, ToolResultChunk{Output: "before", Base64Image: "%%%bad%%%"}},
		{OriginAssistant, TextChunk{Body: "after"}},
	}}
	acc := NewAccumulator(loop, Policy{}, LoopOptions{})

	turn, err := acc.RunTurn(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// output fragment, decode-error fragment, then the stream continues.
	if len(turn.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(turn.Fragments))
	}
	if f, ok := turn.Fragments[1].(TextFragment); !ok || !f.IsError {
		t.Errorf("expected in-place error fragment, got %#v", turn.Fragments[1])
	}
	if turn.Fragments[2].Display() != "after" {
		t.Errorf("stream did not continue past the decode failure: %q", turn.Fragments[2].Display())
	}
}

func TestRunTurnProjectsHistoryBeforeLoop(t *testing.T) {
	loop := &scriptedLoop{}
	prior := []Turn{
		{Role: RoleUser, Fragments: []Fragment{TextFragment{Text: "first"}}},
		{Role: RoleAssistant, Fragments: []Fragment{
			TextFragment{Text: "sure"},
			ImageFragment{Data: pngBytes},
		}},
	}
	acc := NewAccumulator(loop, Policy{}, LoopOptions{Model: "m1", OnlyNMostRecentImages: 3}).
		WithHistory(prior)

	if _, err := acc.RunTurn(context.Background(), "second", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(loop.gotPrompt) != 3 {
		t.Fatalf("expected 3 prompt messages, got %d", len(loop.gotPrompt))
	}
	last := loop.gotPrompt[2]
	if last.Role != RoleUser || last.Text != "second" {
		t.Errorf("user message not projected before the loop started: %+v", last)
	}
	// Prior image fragments are projected back as their recorded display form.
	if !containsString(loop.gotPrompt[1].Text, "[image:") {
		t.Errorf("expected image display form in projection, got %q", loop.gotPrompt[1].Text)
	}
	// Options pass through untouched.
	if loop.gotOpts.Model != "m1" || loop.gotOpts.OnlyNMostRecentImages != 3 {
		t.Errorf("loop options not passed through: %+v", loop.gotOpts)
	}
}

func TestRunTurnRejectsConcurrentTurn(t *testing.T) {
	acc := NewAccumulator(&scriptedLoop{}, Policy{}, LoopOptions{})
	acc.streaming = true

	if _, err := acc.RunTurn(context.Background(), "hi", nil); !errors.Is(err, ErrTurnActive) {
		t.Errorf("expected ErrTurnActive, got %v", err)
	}
}

func TestRunTurnCancellationStillCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := &scriptedLoop{chunks: []scriptedChunk{
		{OriginAssistant, TextChunk{Body: "partial"}},
	}}
	acc := NewAccumulator(loop, Policy{}, LoopOptions{})

	// Cancel before the run: the scripted loop reports ctx.Err() after
	// delivering nothing, and the empty buffer must still be committed.
	cancel()
	if _, err := acc.RunTurn(ctx, "hi", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history := acc.History()
	if len(history) != 2 {
		t.Fatalf("expected committed pair after cancellation, got %d turns", len(history))
	}
	committed := history[1]
	if len(committed.Fragments) != 1 {
		t.Fatalf("expected one error fragment, got %d", len(committed.Fragments))
	}
	if f, ok := committed.Fragments[0].(TextFragment); !ok || !f.IsError {
		t.Errorf("expected cancellation recorded as error fragment, got %#v", committed.Fragments[0])
	}
}
