package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// cleanModelJSON removes Markdown fences and any prose around the JSON array.
func cleanModelJSON(raw string) string {
	// Fences may appear anywhere, not only as wrappers.
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	// Keep only from the first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}

	return s
}

// ParsePage turns one page of model output into candidate records.
// page is the 1-based page identifier stamped on every record's origin.
func ParsePage(page int, raw string) ([]domain.CandidateRecord, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, &PageParseError{Page: page, Reason: "empty model output"}
	}

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, &PageParseError{Page: page, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return nil, &PageParseError{Page: page, Reason: "invalid JSON: trailing data after array"}
	}

	items, ok := parsed.([]interface{})
	if !ok {
		return nil, &PageParseError{Page: page, Reason: fmt.Sprintf("top-level value is %T, want array", parsed)}
	}

	records := make([]domain.CandidateRecord, 0, len(items))
	for i, item := range items {
		c := domain.CandidateRecord{Origin: domain.Origin{Page: page, Position: i}}

		// Non-object elements become empty candidates and fail normalization.
		if obj, ok := item.(map[string]interface{}); ok {
			for _, field := range domain.Fields {
				c.Set(field, textValue(obj[field]))
			}
		}

		records = append(records, c)
	}

	return records, nil
}

// textValue renders a decoded JSON value as the text the model meant.
// null and absent keys map to nil.
func textValue(v interface{}) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case json.Number:
		s = val.String()
	case bool:
		s = fmt.Sprint(val)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(val); err != nil {
			s = fmt.Sprint(val)
		} else {
			s = strings.TrimSpace(buf.String())
		}
	}
	return &s
}
