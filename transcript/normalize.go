package transcript

import (
	"encoding/base64"
	"fmt"
)

// Policy controls which fragment kinds are suppressed from display.
// Read-only for the duration of one normalization.
type Policy struct {
	HideImages bool
}

// DecodeError reports a malformed image payload in a tool result.
// Recovered by the Accumulator: rendered as an error fragment in place,
// the rest of the stream continues.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedChunkError reports a chunk variant the normalizer does not
// know. Fails loud: silently dropping agent output would corrupt the
// transcript's fidelity to what actually happened.
type UnsupportedChunkError struct {
	Chunk Chunk
}

func (e *UnsupportedChunkError) Error() string {
	return fmt.Sprintf("unsupported chunk variant %T", e.Chunk)
}

// Normalize converts one chunk into zero or more display fragments under
// the given policy. Pure: same chunk and policy always yield the same
// fragment sequence.
//
// A ToolResultChunk yields up to three fragments, evaluated independently
// and in order: output text, error text, decoded image. When the image
// payload is malformed the fragments produced so far are returned
// together with a *DecodeError.
func Normalize(chunk Chunk, policy Policy) ([]Fragment, error) {
	switch c := chunk.(type) {
	case TextChunk:
		if c.Body == "" {
			return nil, nil
		}
		return []Fragment{TextFragment{Text: c.Body}}, nil

	case ToolUseChunk:
		input := string(c.Input)
		if input == "" {
			input = "{}"
		}
		summary := fmt.Sprintf("Tool Use: %s\nInput: %s", c.Name, input)
		return []Fragment{TextFragment{Text: summary}}, nil

	case ToolResultChunk:
		var fragments []Fragment
		if c.Output != "" {
			fragments = append(fragments, TextFragment{Text: c.Output})
		}
		if c.Error != "" {
			fragments = append(fragments, TextFragment{Text: c.Error, IsError: true})
		}
		if c.Base64Image != "" && !policy.HideImages {
			data, err := base64.StdEncoding.DecodeString(c.Base64Image)
			if err != nil {
				return fragments, &DecodeError{Err: err}
			}
			fragments = append(fragments, ImageFragment{Data: data})
		}
		return fragments, nil

	default:
		return nil, &UnsupportedChunkError{Chunk: chunk}
	}
}
