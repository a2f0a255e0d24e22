package loop

import "github.com/loomworks/loom/llm"

// trimImageHistory blanks the image payload on all but the keep most
// recent tool results. Only what the model sees changes; the textual
// result stays intact.
func trimImageHistory(messages []llm.Message, keep int) {
	total := 0
	for mi := range messages {
		for _, p := range messages[mi].Parts {
			if part, ok := p.(llm.ToolResultPart); ok && part.Base64Image != "" {
				total++
			}
		}
	}

	excess := total - keep
	if excess <= 0 {
		return
	}

	for mi := range messages {
		for pi, p := range messages[mi].Parts {
			if excess == 0 {
				return
			}
			if part, ok := p.(llm.ToolResultPart); ok && part.Base64Image != "" {
				part.Base64Image = ""
				messages[mi].Parts[pi] = part
				excess--
			}
		}
	}
}
