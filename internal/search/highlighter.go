package search

// Highlight truncates content to its first maxLen bytes and appends "..."; query terms are not marked.
func Highlight(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
