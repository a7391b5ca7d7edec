package mission

import "strings"

// emptyOutputFallback replaces a blank final response so a caller never
// sees a mission that silently produced nothing.
const emptyOutputFallback = "(Agent completed its actions without a final conversational response.)"

// FinalizeRun trims the runner's accumulated output and substitutes
// emptyOutputFallback when nothing but whitespace remains. Split out as a
// pure function so the literal finalize scenarios can be asserted without
// standing up a mission, a provider, or a store.
func FinalizeRun(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return emptyOutputFallback
	}
	return trimmed
}
