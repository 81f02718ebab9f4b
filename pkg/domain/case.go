package domain

import "fmt"

// CaseNode is one step of a suite: an operation call with its parameters and
// expected response shape. A node without an operation is a label (usually a
// fork name) and never carries Success or Response.
type CaseNode struct {
	Title          string           `json:"title,omitempty" yaml:"title,omitempty"`
	Operation      string           `json:"operation,omitempty" yaml:"operation,omitempty"`
	ClientIdentity string           `json:"clientName,omitempty" yaml:"clientName,omitempty"`
	Parameters     map[string]any   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Assertion      map[string]any   `json:"assertion,omitempty" yaml:"assertion,omitempty"`
	SuiteLocals    map[string]any   `json:"suiteLocals,omitempty" yaml:"suiteLocals,omitempty"`
	Hidden         *bool            `json:"__hide__,omitempty" yaml:"__hide__,omitempty"`
	Suites         *SuiteDefinition `json:"suites,omitempty" yaml:"suites,omitempty"`

	// DeclarationOrder is the position of the owning branch among its siblings.
	DeclarationOrder int `json:"-" yaml:"-"`

	Success   *bool          `json:"__case_success__,omitempty" yaml:"__case_success__,omitempty"`
	Response  map[string]any `json:"response,omitempty" yaml:"response,omitempty"`
	ErrorInfo string         `json:"errorInfo,omitempty" yaml:"errorInfo,omitempty"`
}

// DisplayTitle returns the title, falling back to the operation name.
func (c *CaseNode) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Operation
}

// IsHidden reports whether the node is excluded from human-facing paths.
func (c *CaseNode) IsHidden() bool {
	return c.Hidden != nil && *c.Hidden
}

// SetHidden sets the visibility flag explicitly.
func (c *CaseNode) SetHidden(hidden bool) {
	c.Hidden = &hidden
}

// Executed reports whether the node ran (successfully or not).
func (c *CaseNode) Executed() bool {
	return c.Success != nil
}

// Passed reports whether the node ran successfully.
func (c *CaseNode) Passed() bool {
	return c.Success != nil && *c.Success
}

// Failed reports whether the node ran and failed.
func (c *CaseNode) Failed() bool {
	return c.Success != nil && !*c.Success
}

// MarkResult records the execution outcome.
func (c *CaseNode) MarkResult(ok bool) {
	c.Success = &ok
}

// ExpectedStatus returns the status code declared in the assertion, if any.
func (c *CaseNode) ExpectedStatus() (any, bool) {
	if c.Assertion == nil {
		return nil, false
	}
	v, ok := c.Assertion[StatusCodePath]
	return v, ok
}

// Key returns the MergeKey used to collapse identical nodes during export.
func (c *CaseNode) Key() MergeKey {
	key := MergeKey{Title: c.DisplayTitle(), Client: c.ClientIdentity}
	if status, ok := c.ExpectedStatus(); ok && status != nil {
		key.Status = fmt.Sprint(status)
	}
	return key
}

// Clone returns a deep copy of the node. Nested suites are shared, since
// expansion detaches them before nodes are copied.
func (c *CaseNode) Clone() *CaseNode {
	out := *c
	out.Parameters = CopyMap(c.Parameters)
	out.Assertion = CopyMap(c.Assertion)
	out.SuiteLocals = CopyMap(c.SuiteLocals)
	out.Response = CopyMap(c.Response)
	if c.Hidden != nil {
		h := *c.Hidden
		out.Hidden = &h
	}
	if c.Success != nil {
		s := *c.Success
		out.Success = &s
	}
	return &out
}

// MergeKey identifies a node across suites when building the report tree.
type MergeKey struct {
	Title  string
	Client string
	Status string
}

func (k MergeKey) String() string {
	return k.Title + "_" + k.Client + "_" + k.Status
}

// CopyMap deep-copies a generic tree rooted at a mapping.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies mappings and sequences; other values are returned as is.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CopyValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
