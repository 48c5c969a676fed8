// Package cli provides CLI output helpers for labnoted.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line (compact text).
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q (%s)\n\n", response.Total, response.Query, response.SearchType)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s] Score: %.4f\n", result.SearchType, result.Score)
	fmt.Fprintf(w, "ID: %s\n", result.NoteID)
	if result.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", result.Title)
	}
	if result.MatchExplanation != "" {
		fmt.Fprintf(w, "Why: %s\n", result.MatchExplanation)
	}
	fmt.Fprintf(w, "\n%s\n", Truncate(result.Snippet, 200))
	fmt.Fprintln(w)
}

// writeSearchResultsCompact writes one result per line (search type, score, title).
func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "Found %d results for %q\n", response.Total, response.Query)
	for _, result := range response.Results {
		writeOneResultCompact(w, result)
	}
}

func writeOneResultCompact(w io.Writer, result *models.SearchResult) {
	title := SanitizeForLine(result.Title)
	if title == "" {
		title = Truncate(SanitizeForLine(result.Snippet), 80)
	}
	fmt.Fprintf(w, "[%s] %.4f %s | %s\n", result.SearchType, result.Score, result.NoteID, title)
}

// SanitizeForLine replaces newlines and tabs with spaces for single-line output.
func SanitizeForLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "\t", " "))
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	return utils.Truncate(s, maxLen)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
