// Package export renders search results as the CSV report list users download
// and feed to the bulk report downloader.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
)

const (
	// Header is the single column name of the export.
	Header      = "report_pid"
	ContentType = "text/csv"

	filenameSuffix = "search_results.csv"
)

// WriteCSV writes every identifier in results, one per row, under the
// report_pid header. Large results are written in full.
func WriteCSV(w io.Writer, results []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{Header}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, 1)
	for _, id := range results {
		row[0] = id
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Filename builds the download name from the terms as the user typed them:
// "coal_search_results.csv" or "coal_AND_seam_OR_gold_search_results.csv".
func Filename(q *parser.Query) string {
	parts := make([]string, 0, 2*len(q.Terms)+1)
	for i, t := range q.Terms {
		if i > 0 {
			parts = append(parts, string(q.Joins[i-1]))
		}
		parts = append(parts, sanitize(t.Raw))
	}
	parts = append(parts, filenameSuffix)
	return strings.Join(parts, "_")
}

// sanitize drops characters that cannot appear in a file name or a
// Content-Disposition value.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
