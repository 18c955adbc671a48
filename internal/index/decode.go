package index

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode parses the published index document. The document is either a JSON
// object of term to identifier list, or a JSON string whose content is that
// object; the published file uses the second form.
func Decode(data []byte) (map[string][]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decoding index: empty document")
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decoding index envelope: %w", err)
		}
		data = []byte(inner)
	}
	var postings map[string][]string
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("decoding index postings: %w", err)
	}
	if postings == nil {
		return nil, fmt.Errorf("decoding index: document is null")
	}
	return postings, nil
}
