// Package assertion compares resolved expectations against service responses.
package assertion

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

// Validate checks that actual contains every expected key with an equal value.
// Keys are dotted paths, each segment indexing one mapping level. An expected
// mapping carrying domain.KeyClosedSize: true also requires actual to have the
// same number of keys.
func Validate(expected map[string]any, actual any) error {
	return validateMap("", expected, actual)
}

func validateMap(path string, expected map[string]any, actual any) error {
	body := expected
	if flag, ok := expected[domain.KeyClosedSize]; ok {
		body = make(map[string]any, len(expected)-1)
		for k, v := range expected {
			if k != domain.KeyClosedSize {
				body[k] = v
			}
		}
		if closed, _ := flag.(bool); closed {
			m, ok := actual.(map[string]any)
			if !ok || len(m) != len(body) {
				return &domain.AssertionError{Path: display(path), Reason: "mapping size not equal", Expected: len(body), Actual: sizeOf(actual)}
			}
		}
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		full := join(path, key)
		got, err := dig(full, key, actual)
		if err != nil {
			return err
		}
		if err := compare(full, body[key], got); err != nil {
			return err
		}
	}
	return nil
}

func validateSlice(path string, expected []any, actual any) error {
	got, ok := actual.([]any)
	if !ok || len(got) != len(expected) {
		return &domain.AssertionError{Path: display(path), Reason: "sequence length not equal", Expected: len(expected), Actual: sizeOf(actual)}
	}
	for i, e := range expected {
		if err := compare(fmt.Sprintf("%s[%d]", path, i), e, got[i]); err != nil {
			return err
		}
	}
	return nil
}

// compare recurses into non-empty containers; empty ones compare by equality.
func compare(path string, expected, actual any) error {
	switch e := expected.(type) {
	case map[string]any:
		if len(e) > 0 {
			return validateMap(path, e, actual)
		}
	case []any:
		if len(e) > 0 {
			return validateSlice(path, e, actual)
		}
	}
	if !Equal(expected, actual) {
		return &domain.AssertionError{Path: display(path), Expected: expected, Actual: actual}
	}
	return nil
}

func dig(full, key string, actual any) (any, error) {
	cur := actual
	for _, seg := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &domain.AssertionError{Path: full, Reason: "path not exists"}
		}
		v, ok := m[seg]
		if !ok {
			return nil, &domain.AssertionError{Path: full, Reason: "path not exists"}
		}
		cur = v
	}
	return cur, nil
}

// Equal compares scalars, treating every numeric type by value.
func Equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if ba, ok := a.([]byte); ok {
		if sb, ok := b.(string); ok {
			return string(ba) == sb
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	}
	return 0, false
}

func sizeOf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return len(t)
	case []any:
		return len(t)
	}
	return v
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func display(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
