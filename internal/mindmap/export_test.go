package mindmap_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/s3conform/internal/expansion"
	"github.com/aretw0/s3conform/internal/mindmap"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ran(c *domain.CaseNode, ok bool) *domain.CaseNode {
	c.MarkResult(ok)
	return c
}

func suite(state domain.SuiteState, cases ...*domain.CaseNode) *domain.LinearSuite {
	return &domain.LinearSuite{State: state, Cases: cases}
}

func TestExport_MergesSharedPrefix(t *testing.T) {
	out := domain.Outcomes{Pass: []*domain.LinearSuite{
		suite(domain.SuitePassed,
			ran(&domain.CaseNode{Operation: "CreateBucket", ClientIdentity: "admin"}, true),
			ran(&domain.CaseNode{Operation: "PutObject", DeclarationOrder: 1}, true),
		),
		suite(domain.SuitePassed,
			ran(&domain.CaseNode{Operation: "CreateBucket", ClientIdentity: "admin"}, true),
			ran(&domain.CaseNode{Operation: "GetObject", DeclarationOrder: 0}, true),
		),
	}}

	topics := mindmap.NewExporter().Export(out)
	require.Len(t, topics, 1)
	pass := topics[0]
	assert.Equal(t, domain.BucketPass, pass.Title)
	assert.False(t, pass.Folded)
	assert.Equal(t, mindmap.ColorPass, pass.Style["line-color"])

	require.Len(t, pass.Children, 1)
	create := pass.Children[0]
	assert.Equal(t, []string{"admin"}, create.Labels)
	require.Len(t, create.Children, 2)
	assert.Equal(t, "GetObject", create.Children[0].Title, "children sorted by declaration order")
	assert.Equal(t, "PutObject", create.Children[1].Title)
}

func TestExport_DistinctKeysDoNotMerge(t *testing.T) {
	out := domain.Outcomes{Pass: []*domain.LinearSuite{
		suite(domain.SuitePassed, ran(&domain.CaseNode{Operation: "HeadBucket", ClientIdentity: "admin",
			Assertion: map[string]any{domain.StatusCodePath: 200}}, true)),
		suite(domain.SuitePassed, ran(&domain.CaseNode{Operation: "HeadBucket", ClientIdentity: "admin",
			Assertion: map[string]any{domain.StatusCodePath: 404}}, true)),
		suite(domain.SuitePassed, ran(&domain.CaseNode{Operation: "HeadBucket", ClientIdentity: "anonymous"}, true)),
	}}

	pass := mindmap.NewExporter().Export(out)[0]
	require.Len(t, pass.Children, 3)
	assert.Equal(t, "admin-200", pass.Children[0].Label())
	assert.Equal(t, "admin-404", pass.Children[1].Label())
	assert.Equal(t, "anonymous", pass.Children[2].Label())
}

func TestExport_HiddenCases(t *testing.T) {
	hidden := true
	build := func() domain.Outcomes {
		return domain.Outcomes{Pass: []*domain.LinearSuite{suite(domain.SuitePassed,
			ran(&domain.CaseNode{Operation: "CreateBucket", Hidden: &hidden}, true),
			ran(&domain.CaseNode{Operation: "ListObjects"}, true),
		)}}
	}

	pass := mindmap.NewExporter().Export(build())[0]
	require.Len(t, pass.Children, 1)
	assert.Equal(t, "ListObjects", pass.Children[0].Title)

	pass = mindmap.NewExporter(mindmap.WithHideEnabled(false)).Export(build())[0]
	require.Len(t, pass.Children, 1)
	assert.Equal(t, "CreateBucket", pass.Children[0].Title)
	assert.Len(t, pass.Children[0].Children, 1)
}

func TestExport_BucketsAndNotes(t *testing.T) {
	out := domain.Outcomes{
		Failed: []*domain.LinearSuite{suite(domain.SuiteFailed,
			&domain.CaseNode{Title: "Branch"},
			ran(&domain.CaseNode{Operation: "PutObject", ErrorInfo: "AssertionError(\"x\")"}, false),
			&domain.CaseNode{Operation: "GetObject"},
		)},
		Skipped: []*domain.LinearSuite{suite(domain.SuiteSkipped,
			&domain.CaseNode{Operation: "DeleteBucket", Parameters: map[string]any{"Bucket": "b"}},
		)},
	}

	topics := mindmap.NewExporter(mindmap.WithIncludeFields([]string{"operation", "errorInfo"})).Export(out)
	require.Len(t, topics, 2)
	failed, skipped := topics[0], topics[1]
	assert.Equal(t, domain.BucketFailed, failed.Title)
	assert.True(t, skipped.Folded)

	branch := failed.Children[0]
	assert.Equal(t, "bold", branch.Style["fo:font-weight"])

	put := branch.Children[0]
	assert.Equal(t, []string{mindmap.MarkerFailed}, put.Markers)
	var notes map[string]any
	require.NoError(t, json.Unmarshal([]byte(put.Notes), &notes))
	assert.Equal(t, map[string]any{"operation": "PutObject", "errorInfo": "AssertionError(\"x\")"}, notes)

	get := put.Children[0]
	assert.Empty(t, get.Markers)
	assert.Contains(t, get.Notes, `"operation": "GetObject"`, "unexecuted cases carry a full dump")

	del := skipped.Children[0]
	assert.Contains(t, del.Notes, `"Bucket": "b"`)
}

// The note on a merged node depends on which suite reaches it first: a clean
// traversal clears diagnostics left by an earlier failing one, but a failing
// traversal arriving second adds nothing to the existing node.
func TestExport_NoteClearingDependsOnTraversalOrder(t *testing.T) {
	failing := func() *domain.LinearSuite {
		return suite(domain.SuiteFailed,
			&domain.CaseNode{Title: "Fork"},
			ran(&domain.CaseNode{Operation: "PutObject", ErrorInfo: "boom"}, false),
		)
	}
	clean := func() *domain.LinearSuite {
		return suite(domain.SuiteFailed,
			&domain.CaseNode{Title: "Fork"},
			ran(&domain.CaseNode{Operation: "PutObject"}, true),
			ran(&domain.CaseNode{Operation: "GetObject"}, false),
		)
	}
	exporter := mindmap.NewExporter(mindmap.WithIncludeFields([]string{"operation", "errorInfo"}))

	failedFirst := exporter.Export(domain.Outcomes{Failed: []*domain.LinearSuite{failing(), clean()}})[0]
	fork := failedFirst.Children[0]
	put := fork.Children[0]
	assert.Equal(t, []string{mindmap.MarkerFailed}, put.Markers)
	assert.NotContains(t, put.Notes, "boom")
	assert.Contains(t, put.Notes, "PutObject")
	assert.Empty(t, fork.Notes, "ancestor diagnostics are cleared too")

	cleanFirst := exporter.Export(domain.Outcomes{Failed: []*domain.LinearSuite{clean(), failing()}})[0]
	fork = cleanFirst.Children[0]
	put = fork.Children[0]
	assert.Empty(t, put.Markers)
	assert.NotContains(t, put.Notes, "boom")
	assert.Contains(t, fork.Notes, `"title": "Fork"`, "no clean traversal reached the fork after its creation")
}

func TestExport_RoundTrip(t *testing.T) {
	tree := []*domain.TopicNode{
		labelled(topic("CreateBucket", `{"operation": "CreateBucket", "parameters": {"Bucket": "${Bucket}"}}`,
			labelled(topic("Put", `{"operation": "PutObject", "assertion": {"ETag": "x"}}`,
				topic("Get", `{"operation": "GetObject"}`),
			), "admin-200"),
			labelled(topic("Head", `{"operation": "HeadBucket"}`), "anonymous-403"),
		), "admin"),
	}
	def, err := mindmap.ImportTopics(tree)
	require.NoError(t, err)
	original := expansion.Linearize("x", "x", def)
	require.Len(t, original, 2)

	for _, s := range original {
		for _, c := range s.Cases {
			c.MarkResult(true)
		}
		s.State = domain.SuitePassed
	}
	topics := mindmap.NewExporter().Export(domain.Classify(original))
	require.Len(t, topics, 1)

	reimported, err := mindmap.ImportSheet(mindmap.BuildSheet("s3", domain.Summary{}, topics), []string{domain.BucketPass})
	require.NoError(t, err)
	again := expansion.Linearize("x", "x", reimported)
	require.Len(t, again, len(original))

	for i := range original {
		require.Len(t, again[i].Cases, len(original[i].Cases))
		for j, want := range original[i].Cases {
			got := again[i].Cases[j]
			assert.Equal(t, want.Operation, got.Operation)
			assert.Equal(t, want.ClientIdentity, got.ClientIdentity)
			assert.Equal(t, want.Assertion, got.Assertion)
		}
	}
}

func TestBuildSheet(t *testing.T) {
	sheet := mindmap.BuildSheet("s3", domain.Summary{SuiteTotal: 3, SuitePassCount: 2, APIInvokedCount: 9}, nil)
	assert.Equal(t, "s3", sheet.Title)
	assert.Equal(t, "S3-Tests", sheet.Root.Title)
	assert.Contains(t, sheet.Root.Notes, "### Suite Summary ###\nsuiteTotal: 3\nsuitePassCount: 2")
	assert.Contains(t, sheet.Root.Notes, "apiInvokedCount: 9")
}
