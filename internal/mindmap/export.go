package mindmap

import (
	"encoding/json"
	"sort"

	"github.com/aretw0/s3conform/pkg/domain"
)

// Bucket colors of the report tree.
const (
	ColorPass    = "#15831C"
	ColorFailed  = "#E32C2D"
	ColorSkipped = "#D0D0D0"
)

// MarkerFailed flags failed cases in the report tree.
const MarkerFailed = "symbol-exclam"

// DefaultIncludeFields are dumped into the notes of executed cases.
var DefaultIncludeFields = []string{
	domain.KeyOperation,
	domain.KeyParameters,
	domain.KeyAssertion,
	domain.KeySuiteLocals,
}

// Exporter builds report trees from classified suites.
type Exporter struct {
	includeFields []string
	hideEnabled   bool
}

// ExportOption configures an Exporter.
type ExportOption func(*Exporter)

// WithIncludeFields sets the case fields dumped into the notes of executed
// cases.
func WithIncludeFields(fields []string) ExportOption {
	return func(e *Exporter) {
		e.includeFields = fields
	}
}

// WithHideEnabled controls whether hidden cases are left out of the tree.
func WithHideEnabled(enabled bool) ExportOption {
	return func(e *Exporter) {
		e.hideEnabled = enabled
	}
}

// NewExporter creates an exporter. Hidden cases are omitted by default.
func NewExporter(opts ...ExportOption) *Exporter {
	e := &Exporter{
		includeFields: DefaultIncludeFields,
		hideEnabled:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export returns one topic per non-empty bucket, in PASS, FAILED, SKIPPED
// order. SKIPPED is folded.
func (e *Exporter) Export(out domain.Outcomes) []*domain.TopicNode {
	var topics []*domain.TopicNode
	for _, b := range []struct {
		title  string
		color  string
		folded bool
		suites []*domain.LinearSuite
	}{
		{domain.BucketPass, ColorPass, false, out.Pass},
		{domain.BucketFailed, ColorFailed, false, out.Failed},
		{domain.BucketSkipped, ColorSkipped, true, out.Skipped},
	} {
		if t := e.bucket(b.title, b.color, b.folded, b.suites); t != nil {
			topics = append(topics, t)
		}
	}
	return topics
}

type trieNode struct {
	parent   *trieNode
	topic    *domain.TopicNode
	order    int
	byKey    map[domain.MergeKey]*trieNode
	children []*trieNode

	// diagnostic is set while the notes come from a failed or skipped case.
	diagnostic bool
	cleanNotes string
}

func newTrieNode(parent *trieNode, topic *domain.TopicNode, order int) *trieNode {
	return &trieNode{parent: parent, topic: topic, order: order, byKey: make(map[domain.MergeKey]*trieNode)}
}

func (e *Exporter) bucket(title, color string, folded bool, suites []*domain.LinearSuite) *domain.TopicNode {
	root := newTrieNode(nil, nil, 0)
	for _, s := range suites {
		cur := root
		for _, c := range s.Cases {
			if e.hideEnabled && c.IsHidden() {
				continue
			}
			failed := c.Failed()
			skipped := !c.Executed()
			key := c.Key()

			if existing, ok := cur.byKey[key]; ok {
				if !failed && !skipped {
					clearDiagnostics(existing)
				}
				cur = existing
				continue
			}

			n := newTrieNode(cur, e.topic(c, color, failed, skipped), c.DeclarationOrder)
			n.diagnostic = failed || skipped
			if n.diagnostic {
				n.cleanNotes = restrictedNotes(c, e.includeFields, true)
			}
			cur.byKey[key] = n
			cur.children = append(cur.children, n)
			cur = n
		}
	}
	if len(root.children) == 0 {
		return nil
	}
	return &domain.TopicNode{
		Title:    title,
		Style:    bucketStyle(color),
		Folded:   folded,
		Children: sortedTopics(root.children),
	}
}

// clearDiagnostics drops failure and skip notes from n and its ancestors once
// a clean traversal reaches n. The result depends on traversal order.
func clearDiagnostics(n *trieNode) {
	for ; n != nil && n.topic != nil; n = n.parent {
		if n.diagnostic {
			n.topic.Notes = n.cleanNotes
			n.diagnostic = false
		}
	}
}

func (e *Exporter) topic(c *domain.CaseNode, color string, failed, skipped bool) *domain.TopicNode {
	t := &domain.TopicNode{Title: c.DisplayTitle()}
	switch {
	case c.Operation == "":
		t.Style = forkStyle(color)
	case skipped:
		t.Style = skippedStyle()
	case failed:
		t.Style = caseStyle(ColorFailed, color)
		t.Markers = []string{MarkerFailed}
	default:
		t.Style = caseStyle(ColorPass+"FF", color)
	}

	if c.ClientIdentity != "" {
		label := c.ClientIdentity
		if k := c.Key(); k.Status != "" {
			label += "-" + k.Status
		}
		t.Labels = []string{label}
	}

	if skipped {
		t.Notes = fullNotes(c)
	} else {
		t.Notes = restrictedNotes(c, e.includeFields, false)
	}
	return t
}

func sortedTopics(nodes []*trieNode) []*domain.TopicNode {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].order < nodes[j].order
	})
	out := make([]*domain.TopicNode, len(nodes))
	for i, n := range nodes {
		n.topic.Children = sortedTopics(n.children)
		out[i] = n.topic
	}
	return out
}

func fullNotes(c *domain.CaseNode) string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// restrictedNotes dumps the included fields that carry a non-empty value.
// When clean is set, execution results are left out.
func restrictedNotes(c *domain.CaseNode, fields []string, clean bool) string {
	if len(fields) == 0 {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return ""
	}

	picked := make(map[string]any, len(fields))
	for _, f := range fields {
		if clean && (f == domain.KeyResponse || f == domain.KeyErrorInfo || f == domain.KeySuccess) {
			continue
		}
		if v, ok := all[f]; ok && !empty(v) {
			picked[f] = v
		}
	}
	if len(picked) == 0 {
		return ""
	}
	b, err := json.MarshalIndent(picked, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case bool:
		return !t
	}
	return false
}

func forkStyle(color string) map[string]string {
	return map[string]string{
		"line-pattern":   "solid",
		"line-width":     "3pt",
		"line-color":     color,
		"fo:color":       "#000000FF",
		"fo:font-weight": "bold",
	}
}

func skippedStyle() map[string]string {
	return map[string]string{
		"line-pattern": "solid",
		"line-width":   "3pt",
		"svg:fill":     ColorSkipped + "FF",
		"line-color":   ColorSkipped + "FF",
		"fo:color":     "#000000FF",
	}
}

func caseStyle(fill, color string) map[string]string {
	return map[string]string{
		"line-pattern": "solid",
		"svg:fill":     fill,
		"line-width":   "3pt",
		"line-color":   color,
	}
}

func bucketStyle(color string) map[string]string {
	return map[string]string{
		"line-pattern": "solid",
		"svg:fill":     color,
		"line-width":   "3pt",
		"line-color":   color,
	}
}
