package expansion_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/s3conform/internal/expansion"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, src string) *domain.SuiteDefinition {
	t.Helper()
	var def domain.SuiteDefinition
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))
	return &def
}

func titles(cases []*domain.CaseNode) []string {
	out := make([]string, len(cases))
	for i, c := range cases {
		out[i] = c.DisplayTitle()
	}
	return out
}

func TestExpand_IndependentBinaryForks(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			def := &domain.SuiteDefinition{Branches: []*domain.Branch{{}}}
			head := def.Branches[0]
			for i := 0; i < k; i++ {
				fork := &domain.CaseNode{Suites: &domain.SuiteDefinition{Branches: []*domain.Branch{
					{Cases: []*domain.CaseNode{{Operation: fmt.Sprintf("A%d", i)}}},
					{Cases: []*domain.CaseNode{{Operation: fmt.Sprintf("B%d", i)}}},
				}}}
				head.Cases = append(head.Cases, fork)
			}
			assert.Len(t, expansion.Expand(def), 1<<k)
		})
	}
}

func TestExpand_ProductOfBranchCounts(t *testing.T) {
	def := decode(t, `
- - operation: CreateBucket
    suites:
      - - operation: PutA
      - - operation: PutB
      - - operation: PutC
  - operation: Middle
    suites:
      - - operation: GetA
      - - operation: GetB
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 6)
	assert.Equal(t, []string{"CreateBucket", "PutA", "Middle", "GetA"}, titles(paths[0]))
	assert.Equal(t, []string{"CreateBucket", "PutB", "Middle", "GetA"}, titles(paths[1]))
	assert.Equal(t, []string{"CreateBucket", "PutA", "Middle", "GetB"}, titles(paths[3]))
	assert.Equal(t, []string{"CreateBucket", "PutC", "Middle", "GetB"}, titles(paths[5]))
}

func TestExpand_NamedBranchesAndWrappers(t *testing.T) {
	def := decode(t, `
Plain:
  - operation: CreateBucket
__hide__:
  Cleanup:
    - operation: DropBucket
      __hide__: false
__not_hide__:
  Shown:
    - operation: HeadBucket
      __hide__: true
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 3)

	assert.Equal(t, []string{"Plain", "CreateBucket"}, titles(paths[0]))
	assert.False(t, paths[0][0].IsHidden())

	assert.Equal(t, []string{"Cleanup", "DropBucket"}, titles(paths[1]))
	assert.True(t, paths[1][0].IsHidden(), "fork label follows the wrapper")
	assert.True(t, paths[1][1].IsHidden(), "wrapper overrides the node flag")

	assert.False(t, paths[2][1].IsHidden())
	for i, p := range paths {
		for _, c := range p {
			assert.Equal(t, i, c.DeclarationOrder)
		}
	}
}

func TestExpand_NestedForkInheritsOwnerVisibility(t *testing.T) {
	def := decode(t, `
- - operation: Setup
    __hide__: true
    suites:
      - - operation: Inner
      - - operation: Shown
          __hide__: false
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 2)
	assert.True(t, paths[0][1].IsHidden())
	assert.False(t, paths[1][1].IsHidden())
}

func TestExpand_EmptyBranchKeepsPrefix(t *testing.T) {
	def := decode(t, `
- - operation: CreateBucket
    suites:
      - []
      - - operation: PutObject
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"CreateBucket"}, titles(paths[0]))
	assert.Equal(t, []string{"CreateBucket", "PutObject"}, titles(paths[1]))
}

func TestExpand_UntitledNodeOnlyForks(t *testing.T) {
	def := decode(t, `
- - operation: CreateBucket
  - suites:
      - - operation: A
      - - operation: B
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"CreateBucket", "A"}, titles(paths[0]))
	assert.Equal(t, []string{"CreateBucket", "B"}, titles(paths[1]))
}

func TestExpand_SuitesDoNotShareNodes(t *testing.T) {
	def := decode(t, `
- - operation: CreateBucket
    parameters:
      Bucket: b
    suites:
      - - operation: A
      - - operation: B
`)
	paths := expansion.Expand(def)
	require.Len(t, paths, 2)

	paths[0][0].Parameters["Bucket"] = "changed"
	paths[0][0].MarkResult(true)
	assert.Equal(t, "b", paths[1][0].Parameters["Bucket"])
	assert.False(t, paths[1][0].Executed())
	assert.Equal(t, "b", def.Branches[0].Cases[0].Parameters["Bucket"])
	assert.NotNil(t, def.Branches[0].Cases[0].Suites, "authored definition is untouched")
}

func TestLinearize_PathsAndIDs(t *testing.T) {
	def := decode(t, `
Ownership:
  - operation: CreateBucket
    __hide__: true
  - suites:
      ACL:
        - operation: PutBucketAcl
      Policy:
        - title: PutPolicy
          operation: PutBucketPolicy
`)
	suites := expansion.Linearize(expansion.IDPrefix("s3", "bucket.yaml"), "bucket.yaml", def)
	require.Len(t, suites, 2)

	assert.Equal(t, "__s3__@bucket.yaml@__1__", suites[0].ID)
	assert.Equal(t, "__s3__@bucket.yaml@__2__", suites[1].ID)
	assert.Equal(t, "Ownership::CreateBucket::ACL::PutBucketAcl", suites[0].FullPath)
	assert.Equal(t, "Ownership::ACL::PutBucketAcl", suites[0].VisiblePath)
	assert.Equal(t, "Ownership::CreateBucket::Policy::PutPolicy", suites[1].FullPath)

	for _, s := range suites {
		assert.Equal(t, domain.SuitePending, s.State)
		assertSubsequence(t, s)
	}
}

func TestLinearize_DropsEmptyPaths(t *testing.T) {
	def := decode(t, `
- []
- - operation: ListBuckets
`)
	suites := expansion.Linearize("x", "x", def)
	require.Len(t, suites, 1)
	assert.Equal(t, "x@__1__", suites[0].ID)
}

// assertSubsequence checks that the visible path is the full path minus the
// titles of hidden nodes.
func assertSubsequence(t *testing.T, s *domain.LinearSuite) {
	t.Helper()
	var want []string
	for _, c := range s.Cases {
		if !c.IsHidden() {
			want = append(want, c.DisplayTitle())
		}
	}
	assert.Equal(t, strings.Join(want, domain.PathSeparator), s.VisiblePath)
}
