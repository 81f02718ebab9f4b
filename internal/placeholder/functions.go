package placeholder

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Functions returns the helper functions available to @{expr}. Stateful
// helpers (counters, random identifiers) are intentionally impure.
func (s *RunState) Functions(ctx context.Context) map[string]function.Function {
	return map[string]function.Function{
		"urlEncode":     urlEncodeFunc,
		"uuidStr":       uuidStrFunc,
		"bucketOrdinal": s.ordinalFunc(ctx),
		"bucketName":    s.bucketNameFunc(ctx),
		"upper":         stdlib.UpperFunc,
		"lower":         stdlib.LowerFunc,
		"format":        stdlib.FormatFunc,
		"join":          stdlib.JoinFunc,
		"length":        stdlib.LengthFunc,
		"substr":        stdlib.SubstrFunc,
		"min":           stdlib.MinFunc,
		"max":           stdlib.MaxFunc,
	}
}

var urlEncodeFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "str", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(URLEncode(args[0].AsString())), nil
	},
})

var uuidStrFunc = function.New(&function.Spec{
	Params: []function.Parameter{},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(UUIDString()), nil
	},
})

func (s *RunState) ordinalFunc(ctx context.Context) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
			n, err := s.NextOrdinal(ctx)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.NumberIntVal(n), nil
		},
	})
}

func (s *RunState) bucketNameFunc(ctx context.Context) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
			name, err := s.BucketName(ctx)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(name), nil
		},
	})
}

// URLEncode percent-encodes everything except unreserved characters and '/'.
func URLEncode(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// UUIDString returns a time-based UUID as 32 hex characters.
func UUIDString() string {
	id, err := uuid.NewUUID()
	if err != nil {
		id = uuid.New()
	}
	return hex.EncodeToString(id[:])
}
