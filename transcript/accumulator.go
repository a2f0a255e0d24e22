package transcript

import (
	"context"
	"errors"
	"slices"
)

// PromptMessage is one turn projected into the role+text form the agent
// loop expects. Image and tool fragments from prior turns are represented
// back as their recorded display form.
type PromptMessage struct {
	Role Role
	Text string
}

// Callbacks are the two channels the Accumulator hands to the agent loop.
// The loop must invoke them strictly sequentially: each call completes,
// including normalization and snapshot emission, before the next chunk is
// delivered.
type Callbacks struct {
	OnAssistant func(Chunk)
	OnTool      func(Chunk)
}

// LoopOptions are opaque pass-through values for the agent loop. The
// Accumulator does not reinterpret them; in particular
// OnlyNMostRecentImages governs what the loop sends upstream, never what
// is displayed.
type LoopOptions struct {
	Model                 string
	SystemPromptSuffix    string
	OnlyNMostRecentImages int
	MaxIterations         int
}

// AgentLoop is the external collaborator that calls the model, dispatches
// tool invocations and streams chunks back through the callbacks. Its own
// completion (success or failure) is the sole termination signal.
type AgentLoop interface {
	Run(ctx context.Context, prompt []PromptMessage, cb Callbacks, opts LoopOptions) error
}

// EmitFunc receives a snapshot of the live turn after every appended
// fragment: one emission per fragment, never batched.
type EmitFunc func(snapshot []Fragment)

// ErrTurnActive is returned when RunTurn is called while a previous turn
// is still streaming. Turns are strictly serialized.
var ErrTurnActive = errors.New("transcript: turn already streaming")

// Accumulator drives the agent loop and folds its chunk stream into a
// turn-structured history. History is exclusively owned here; no other
// component may append or reorder turns.
type Accumulator struct {
	loop      AgentLoop
	policy    Policy
	opts      LoopOptions
	history   []Turn
	streaming bool
}

// NewAccumulator creates an accumulator over the given agent loop.
func NewAccumulator(loop AgentLoop, policy Policy, opts LoopOptions) *Accumulator {
	return &Accumulator{loop: loop, policy: policy, opts: opts}
}

// WithHistory seeds previously recorded turns, e.g. a resumed session.
func (a *Accumulator) WithHistory(turns []Turn) *Accumulator {
	a.history = slices.Clone(turns)
	return a
}

// History returns a copy of the committed turns.
func (a *Accumulator) History() []Turn {
	return slices.Clone(a.history)
}

// RunTurn executes one conversation turn.
//
// The user turn is appended synchronously before the loop starts. Every
// chunk delivered by the loop is normalized immediately; each resulting
// fragment is appended to the stream buffer and emitted as a snapshot.
// Normalizer failures become error fragments in place and do not abort
// the stream. On loop completion (success, failure or cancellation) the
// buffer is committed as one assistant turn, with a loop failure recorded
// as a final error fragment. History grows by exactly two turns per call.
//
// The returned error is non-nil only for misuse (a turn already
// streaming); loop and normalizer failures are transcript content, not
// errors.
func (a *Accumulator) RunTurn(ctx context.Context, userMessage string, emit EmitFunc) (turn Turn, err error) {
	if a.streaming {
		return Turn{}, ErrTurnActive
	}
	a.streaming = true

	a.history = append(a.history, Turn{
		Role:      RoleUser,
		Fragments: []Fragment{TextFragment{Text: userMessage}},
	})
	prompt := a.project()

	var buffer []Fragment
	push := func(f Fragment) {
		buffer = append(buffer, f)
		if emit != nil {
			emit(slices.Clone(buffer))
		}
	}
	consume := func(chunk Chunk) {
		fragments, normErr := Normalize(chunk, a.policy)
		for _, f := range fragments {
			push(f)
		}
		if normErr != nil {
			push(TextFragment{Text: normErr.Error(), IsError: true})
		}
	}

	// Commit on every exit path: a partial, truthful transcript is
	// preferred over in-flight content silently dropped.
	defer func() {
		turn = Turn{Role: RoleAssistant, Fragments: buffer}
		a.history = append(a.history, turn)
		a.streaming = false
	}()

	cb := Callbacks{OnAssistant: consume, OnTool: consume}
	if runErr := a.loop.Run(ctx, prompt, cb, a.opts); runErr != nil {
		push(TextFragment{Text: runErr.Error(), IsError: true})
	}
	return Turn{}, nil
}

// project maps the full history, including the just-appended user turn,
// into the agent loop's role+text format.
func (a *Accumulator) project() []PromptMessage {
	prompt := make([]PromptMessage, 0, len(a.history))
	for _, t := range a.history {
		prompt = append(prompt, PromptMessage{Role: t.Role, Text: t.Text()})
	}
	return prompt
}
