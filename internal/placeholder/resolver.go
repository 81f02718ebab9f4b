package placeholder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

var (
	lookupPattern     = regexp.MustCompile(`\$\{(.*?)\}`)
	expressionPattern = regexp.MustCompile(`@\{(.*?)\}`)
)

type handler struct {
	pattern *regexp.Regexp
	eval    func(ctx context.Context, arg string, scope map[string]any) (any, error)
}

// Resolver binds runtime values into placeholder-bearing values.
type Resolver struct {
	state    *RunState
	handlers []handler
}

// NewResolver creates a resolver backed by the given run state.
func NewResolver(state *RunState) *Resolver {
	if state == nil {
		state = NewRunState()
	}
	r := &Resolver{state: state}
	r.handlers = []handler{
		{pattern: lookupPattern, eval: lookup},
		{pattern: expressionPattern, eval: r.evaluate},
	}
	return r
}

// State returns the run state the resolver evaluates against.
func (r *Resolver) State() *RunState {
	return r.state
}

// Resolve returns value with every placeholder bound against scope. Mappings
// and sequences are resolved into fresh copies; numbers and booleans pass
// through unchanged.
func (r *Resolver) Resolve(ctx context.Context, value any, scope map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.ResolveText(ctx, v, scope)
	case map[string]any:
		out := domain.CopyMap(v)
		if err := r.ResolveTree(ctx, out, scope, nil); err != nil {
			return nil, err
		}
		return out, nil
	case []any:
		out := domain.CopyValue(v).([]any)
		if err := r.resolveSlice(ctx, out, scope, nil); err != nil {
			return nil, err
		}
		return out, nil
	default:
		if isPassthrough(v) {
			return v, nil
		}
		return nil, unsupported(v)
	}
}

// ResolveTree resolves a mapping in place. Every leaf whose resolved value is
// neither a number nor text gets a hook on rb restoring the original text.
func (r *Resolver) ResolveTree(ctx context.Context, tree map[string]any, scope map[string]any, rb *Rollback) error {
	for k, v := range tree {
		switch t := v.(type) {
		case map[string]any:
			if err := r.ResolveTree(ctx, t, scope, rb); err != nil {
				return err
			}
		case []any:
			if err := r.resolveSlice(ctx, t, scope, rb); err != nil {
				return err
			}
		case string:
			resolved, err := r.ResolveText(ctx, t, scope)
			if err != nil {
				return err
			}
			tree[k] = resolved
			if rb != nil && !isPrimitive(resolved) {
				key, original := k, t
				rb.Register(func() { tree[key] = original })
			}
		default:
			if !isPassthrough(t) {
				return unsupported(t)
			}
		}
	}
	return nil
}

func (r *Resolver) resolveSlice(ctx context.Context, items []any, scope map[string]any, rb *Rollback) error {
	for i, v := range items {
		switch t := v.(type) {
		case map[string]any:
			if err := r.ResolveTree(ctx, t, scope, rb); err != nil {
				return err
			}
		case []any:
			if err := r.resolveSlice(ctx, t, scope, rb); err != nil {
				return err
			}
		case string:
			resolved, err := r.ResolveText(ctx, t, scope)
			if err != nil {
				return err
			}
			items[i] = resolved
			if rb != nil && !isPrimitive(resolved) {
				idx, original := i, t
				rb.Register(func() { items[idx] = original })
			}
		default:
			if !isPassthrough(t) {
				return unsupported(t)
			}
		}
	}
	return nil
}

// ResolveText applies the lookup handler and then the expression handler. A
// token spanning the whole text returns its value with its native type;
// otherwise every token is substituted as text and nil renders empty.
func (r *Resolver) ResolveText(ctx context.Context, text string, scope map[string]any) (any, error) {
	current := text
	for _, h := range r.handlers {
		matches := h.pattern.FindAllStringSubmatch(current, -1)
		if len(matches) == 0 {
			continue
		}
		if len(matches) == 1 && matches[0][0] == current {
			return h.eval(ctx, matches[0][1], scope)
		}

		cache := make(map[string]string, len(matches))
		var firstErr error
		current = h.pattern.ReplaceAllStringFunc(current, func(token string) string {
			if s, ok := cache[token]; ok {
				return s
			}
			if firstErr != nil {
				return token
			}
			arg := h.pattern.FindStringSubmatch(token)[1]
			v, err := h.eval(ctx, arg, scope)
			if err != nil {
				firstErr = err
				return token
			}
			s := render(v)
			cache[token] = s
			return s
		})
		if firstErr != nil {
			return nil, firstErr
		}
	}
	return current, nil
}

func lookup(_ context.Context, name string, scope map[string]any) (any, error) {
	v, ok := scope[name]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (r *Resolver) evaluate(ctx context.Context, src string, scope map[string]any) (any, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expression", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, &domain.ConfigurationError{Field: "@{" + src + "}", Reason: "malformed expression", Err: diagError(diags)}
	}
	evalCtx := &hcl.EvalContext{
		Variables: variables(scope),
		Functions: r.state.Functions(ctx),
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, &domain.ResolutionError{Expr: src, Err: diagError(diags)}
	}
	out, err := fromCty(val)
	if err != nil {
		return nil, &domain.ResolutionError{Expr: src, Err: err}
	}
	return out, nil
}

func diagError(diags hcl.Diagnostics) error {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	}
}

// isPrimitive reports whether v is a number or text.
func isPrimitive(v any) bool {
	switch v.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// isPassthrough reports whether a non-text leaf is accepted unchanged.
func isPassthrough(v any) bool {
	if _, ok := v.(bool); ok {
		return true
	}
	_, isText := v.(string)
	return isPrimitive(v) && !isText
}

func unsupported(v any) error {
	return &domain.ConfigurationError{Reason: fmt.Sprintf("unsupported parameter %v (%T)", v, v)}
}
