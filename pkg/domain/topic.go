package domain

// TopicNode is the hierarchical mind-map form of suites and outcomes.
// Only the first label is meaningful.
type TopicNode struct {
	Title    string            `json:"title"`
	Notes    string            `json:"notes,omitempty"`
	Labels   []string          `json:"labels,omitempty"`
	Markers  []string          `json:"markers,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Folded   bool              `json:"folded,omitempty"`
	Children []*TopicNode      `json:"children,omitempty"`
}

// Label returns the first label or an empty string.
func (t *TopicNode) Label() string {
	if len(t.Labels) == 0 {
		return ""
	}
	return t.Labels[0]
}

// Walk visits the node and its descendants depth first.
func (t *TopicNode) Walk(fn func(*TopicNode)) {
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// Sheet is one service's report tree.
type Sheet struct {
	Title string     `json:"title"`
	Root  *TopicNode `json:"root"`
}

// Bucket titles used for the top-level report topics.
const (
	BucketPass    = "PASS"
	BucketFailed  = "FAILED"
	BucketSkipped = "SKIPPED"
)
