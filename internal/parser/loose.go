package parser

import (
	"encoding/json"
	"math"
	"strings"
)

// multiline is a notebook text field that may be encoded either as a single
// string or as a list of strings. Lists are joined with no separator; any
// other shape decodes to the empty string.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(b, &parts); err == nil {
		*m = multiline(strings.Join(parts, ""))
		return nil
	}
	*m = ""
	return nil
}

// looseString decodes a JSON string and ignores every other shape.
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*l = ""
		return nil
	}
	*l = looseString(s)
	return nil
}

// looseList decodes a JSON array into its raw elements; non-arrays are empty.
type looseList []json.RawMessage

func (l *looseList) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// mimeBundle is the data map of an execute_result or display_data output.
type mimeBundle map[string]multiline

func (m *mimeBundle) UnmarshalJSON(b []byte) error {
	var raw map[string]multiline
	if err := json.Unmarshal(b, &raw); err != nil {
		*m = nil
		return nil
	}
	*m = raw
	return nil
}

// lines decodes a list of strings; non-string elements become empty lines.
type lines []string

func (l *lines) UnmarshalJSON(b []byte) error {
	var items looseList
	_ = json.Unmarshal(b, &items)
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s looseString
		_ = json.Unmarshal(item, &s)
		out = append(out, string(s))
	}
	*l = out
	return nil
}

// executionCount keeps a positive integral count; null, zero and anything
// non-numeric decode to nil.
type executionCount struct {
	n *int
}

func (e *executionCount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil || f == 0 || f != math.Trunc(f) {
		e.n = nil
		return nil
	}
	n := int(f)
	e.n = &n
	return nil
}
