package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Call carries what a predefined operation may use: the case binding, the
// resolved parameters and the suite/case scopes.
type Call struct {
	Binding     ports.ClientBinding
	Params      map[string]any
	SuiteLocals map[string]any
	CaseLocals  map[string]any

	extra *atomic.Int64
}

// Invoke issues one request through the case binding and counts it as an
// extra API call. Service errors are returned as their response payload.
func (c *Call) Invoke(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	if c.Binding == nil {
		return nil, fmt.Errorf("%s requires a client identity: %w", operation, domain.ErrUnknownIdentity)
	}
	if c.extra != nil {
		c.extra.Add(1)
	}
	resp, err := c.Binding.Invoke(ctx, operation, params)
	return responseOf(operation, resp, err)
}

// Lookup returns a parameter, falling back to the case scope.
func (c *Call) Lookup(name string) (any, bool) {
	if v, ok := c.Params[name]; ok && v != nil {
		return v, true
	}
	v, ok := c.CaseLocals[name]
	return v, ok && v != nil
}

// PredefinedFunc is an operation implemented by the runner itself.
type PredefinedFunc func(ctx context.Context, call *Call) (map[string]any, error)

// Registry maps operation names to predefined implementations. Lookups happen
// before the bound client is consulted.
type Registry map[string]PredefinedFunc

// DefaultRegistry returns SetVars, DeleteObjects and DropBucket.
func DefaultRegistry() Registry {
	return Registry{
		"SetVars":       SetVars,
		"DeleteObjects": DeleteObjects,
		"DropBucket":    DropBucket,
	}
}

// SetVars publishes the parameters into the suite scope and echoes them.
func SetVars(_ context.Context, call *Call) (map[string]any, error) {
	maps.Copy(call.SuiteLocals, call.Params)
	return domain.CopyMap(call.Params), nil
}

// DeleteObjects empties a bucket page by page with bulk deletes.
func DeleteObjects(ctx context.Context, call *Call) (map[string]any, error) {
	bucket, ok := call.Lookup("Bucket")
	if !ok {
		return nil, &domain.ConfigurationError{Field: "Bucket", Reason: "DeleteObjects requires a bucket"}
	}

	params := map[string]any{"Bucket": bucket}
	for {
		page, err := call.Invoke(ctx, "ListObjects", params)
		if err != nil || isServiceError(page) {
			return page, err
		}
		last := page

		objects := keysOf(page)
		if len(objects) > 0 {
			last, err = call.Invoke(ctx, "DeleteObjects", map[string]any{
				"Bucket": bucket,
				"Delete": map[string]any{"Objects": objects},
			})
			if err != nil || isServiceError(last) {
				return last, err
			}
		}

		marker, more := nextMarker(page)
		if !more {
			return last, nil
		}
		params = map[string]any{"Bucket": bucket, "Marker": marker}
	}
}

// DropBucket deletes every object concurrently, then the bucket itself.
func DropBucket(ctx context.Context, call *Call) (map[string]any, error) {
	bucket, ok := call.Lookup("Bucket")
	if !ok {
		return nil, &domain.ConfigurationError{Field: "Bucket", Reason: "DropBucket requires a bucket"}
	}

	var keys []any
	params := map[string]any{"Bucket": bucket}
	for {
		page, err := call.Invoke(ctx, "ListObjects", params)
		if err != nil {
			return nil, err
		}
		if isServiceError(page) {
			return page, nil
		}
		for _, obj := range keysOf(page) {
			keys = append(keys, obj.(map[string]any)["Key"])
		}
		marker, more := nextMarker(page)
		if !more {
			break
		}
		params = map[string]any{"Bucket": bucket, "Marker": marker}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dropConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			resp, err := call.Invoke(gctx, "DeleteObject", map[string]any{"Bucket": bucket, "Key": key})
			if err != nil {
				return err
			}
			if isServiceError(resp) {
				return fmt.Errorf("delete %v: %v", key, resp["Error"])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("drop bucket %v: %w", bucket, err)
	}

	return call.Invoke(ctx, "DeleteBucket", map[string]any{"Bucket": bucket})
}

const dropConcurrency = 16

// keysOf returns the {"Key": k} identifiers of a listing page in the generic
// tree shape parameters use.
func keysOf(page map[string]any) []any {
	contents, _ := page["Contents"].([]any)
	out := make([]any, 0, len(contents))
	for _, c := range contents {
		obj, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if key, ok := obj["Key"]; ok {
			out = append(out, map[string]any{"Key": key})
		}
	}
	return out
}

// nextMarker follows ListObjects pagination: NextMarker when present, else
// the last key of a truncated page.
func nextMarker(page map[string]any) (any, bool) {
	if truncated, _ := page["IsTruncated"].(bool); !truncated {
		return nil, false
	}
	if m, ok := page["NextMarker"]; ok && m != nil && m != "" {
		return m, true
	}
	keys := keysOf(page)
	if len(keys) == 0 {
		return nil, false
	}
	return keys[len(keys)-1]["Key"], true
}

func isServiceError(resp map[string]any) bool {
	_, ok := resp["Error"]
	return ok
}

// responseOf turns a structured service error into its response payload and
// wraps any other failure as a dispatch failure.
func responseOf(operation string, resp map[string]any, err error) (map[string]any, error) {
	if err == nil {
		return resp, nil
	}
	var se *domain.ServiceError
	if errors.As(err, &se) {
		return se.Response(), nil
	}
	var cfg *domain.ConfigurationError
	if errors.As(err, &cfg) {
		return nil, err
	}
	return nil, &domain.DispatchFailure{Operation: operation, Err: err}
}
