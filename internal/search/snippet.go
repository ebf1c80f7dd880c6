package search

import "strings"

// snippet context: how many bytes of text to keep before the first matched
// term occurrence.
const snippetLeadIn = 20

// extractSnippet returns a short window of the document preview around the
// first occurrence of any matched term, falling back to the start of the
// preview when no term appears in it (the match may be past the preview
// boundary).
func extractSnippet(preview string, matchedTerms []string, maxLen int) string {
	if preview == "" {
		return ""
	}
	lower := strings.ToLower(preview)
	for _, term := range matchedTerms {
		pos := strings.Index(lower, term)
		if pos < 0 {
			continue
		}
		start := pos - snippetLeadIn
		if start < 0 {
			start = 0
		}
		end := start + maxLen
		if end > len(preview) {
			end = len(preview)
		}
		snippet := strings.TrimSpace(preview[start:end])
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(preview) {
			snippet += "..."
		}
		return snippet
	}

	end := maxLen
	if end > len(preview) {
		end = len(preview)
	}
	snippet := strings.TrimSpace(preview[:end])
	if end < len(preview) {
		snippet += "..."
	}
	return snippet
}
