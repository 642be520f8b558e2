package gap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrInvalidPayload = errors.New("payload is not valid JSON")

// PathQuery looks up a value inside a structured message payload.
type PathQuery interface {
	Lookup(payload []byte, path string) (value interface{}, found bool, err error)
}

// JSONPathQuery evaluates JSONPath expressions. Paths without a root are
// read relative to the document, so "data.v" and "$.data.v" are the same.
// When the expression selects several nodes the first one is used.
type JSONPathQuery struct{}

func (JSONPathQuery) Lookup(payload []byte, path string) (interface{}, bool, error) {
	x, err := parseValuePath(path)
	if err != nil {
		return nil, false, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, false, ErrInvalidPayload
	}

	doc, err := oj.Parse(payload)
	if err != nil {
		return nil, false, ErrInvalidPayload
	}

	matches := x.Get(doc)
	if len(matches) == 0 {
		return nil, false, nil
	}
	return matches[0], true, nil
}

func parseValuePath(path string) (jp.Expr, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return nil, ErrInvalidValuePath
	case strings.HasPrefix(path, "$"), strings.HasPrefix(path, "@"):
	case strings.HasPrefix(path, "["):
		path = "$" + path
	default:
		path = "$." + path
	}

	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValuePath, err)
	}
	return x, nil
}

// Present reports whether a looked-up value counts as data. Nil, blank
// strings, empty collections and false are absent.
func Present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
