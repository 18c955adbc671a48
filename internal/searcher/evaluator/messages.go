package evaluator

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
)

// Messages returns the advisory text a presentation layer shows alongside an
// outcome. Missing terms and empty results get distinct wording.
func Messages(q *parser.Query, o *Outcome) []string {
	msgs := make([]string, 0, 3)
	if q.Modified() {
		msgs = append(msgs, fmt.Sprintf("Modifying search term to %s", q.String()))
	}
	switch {
	case !o.Found():
		msgs = append(msgs,
			"The search term was not found in the report index",
			"You could try the search again using similar words, or the same words in a different order",
		)
	case o.Empty():
		msgs = append(msgs,
			"Sorry, no results were found for that specific search",
			"You could try the search using similar words instead, or try the same words in a different order",
		)
	case o.LargeResult:
		msgs = append(msgs,
			fmt.Sprintf("%d results found", o.Count),
			"The number of reports that contain your search term is too many to print them all out here. Download the full list as CSV.",
		)
	default:
		msgs = append(msgs,
			fmt.Sprintf("%d results found", o.Count),
			fmt.Sprintf("The following reports contain the terms %s:", q.RawQuery),
		)
	}
	return msgs
}
