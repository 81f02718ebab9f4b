package placeholder_test

import (
	"context"
	"testing"

	"github.com/aretw0/s3conform/internal/placeholder"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveText_TypePreservation(t *testing.T) {
	r := placeholder.NewResolver(nil)
	ctx := context.Background()
	scope := map[string]any{"x": 7}

	v, err := r.ResolveText(ctx, "${x}", scope)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = r.ResolveText(ctx, "v=${x}", scope)
	require.NoError(t, err)
	assert.Equal(t, "v=7", v)
}

func TestResolveText_NullPropagation(t *testing.T) {
	r := placeholder.NewResolver(nil)
	ctx := context.Background()

	v, err := r.ResolveText(ctx, "${missing}", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = r.ResolveText(ctx, "a${missing}b", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ab", v)
}

func TestResolveText_Expressions(t *testing.T) {
	r := placeholder.NewResolver(nil)
	ctx := context.Background()
	scope := map[string]any{"Key": "dir/a b", "size": 3, "flag": true}

	tests := []struct {
		name string
		in   string
		want any
	}{
		{"arithmetic keeps number", "@{size * 2}", 6},
		{"boolean result", "@{!flag}", false},
		{"embedded expression renders text", "n-@{size + 1}", "n-4"},
		{"url encoding keeps slash", "@{urlEncode(Key)}", "dir/a%20b"},
		{"string helpers", "@{upper(\"abc\")}", "ABC"},
		{"lookup then expression", "${Key}:@{size}", "dir/a b:3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveText(ctx, tt.in, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveText_BucketOrdinalIsMonotonic(t *testing.T) {
	r := placeholder.NewResolver(placeholder.NewRunState(placeholder.WithBucketPrefix("tests")))
	ctx := context.Background()

	first, err := r.ResolveText(ctx, "@{bucketOrdinal()}", nil)
	require.NoError(t, err)
	second, err := r.ResolveText(ctx, "@{bucketOrdinal()}", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	name, err := r.ResolveText(ctx, "@{bucketName()}", nil)
	require.NoError(t, err)
	assert.Equal(t, "tests-3", name)
}

func TestResolveText_RepeatedTokenEvaluatedOnce(t *testing.T) {
	r := placeholder.NewResolver(nil)
	v, err := r.ResolveText(context.Background(), "@{bucketOrdinal()}-@{bucketOrdinal()}", nil)
	require.NoError(t, err)
	assert.Equal(t, "1-1", v)
}

func TestResolveText_UUID(t *testing.T) {
	r := placeholder.NewResolver(nil)
	v, err := r.ResolveText(context.Background(), "@{uuidStr()}", nil)
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	assert.Len(t, s, 32)
}

func TestResolveText_Errors(t *testing.T) {
	r := placeholder.NewResolver(nil)
	ctx := context.Background()

	_, err := r.ResolveText(ctx, "@{1 +}", nil)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = r.ResolveText(ctx, "@{undefinedVar + 1}", nil)
	var resErr *domain.ResolutionError
	assert.ErrorAs(t, err, &resErr)
}

func TestResolveTree_RollbackRestoresNonPrimitive(t *testing.T) {
	r := placeholder.NewResolver(nil)
	ctx := context.Background()
	scope := map[string]any{"Bucket": "b-1", "Tags": []any{"a", "b"}, "Missing": nil}

	params := map[string]any{
		"Bucket": "${Bucket}",
		"Tags":   "${Tags}",
		"Nested": map[string]any{"Empty": "${nothing}", "Count": 2},
		"List":   []any{"${Bucket}", "${Tags}"},
		"Flag":   true,
	}
	var rb placeholder.Rollback
	require.NoError(t, r.ResolveTree(ctx, params, scope, &rb))

	assert.Equal(t, "b-1", params["Bucket"])
	assert.Equal(t, []any{"a", "b"}, params["Tags"])
	assert.Nil(t, params["Nested"].(map[string]any)["Empty"])
	assert.Equal(t, []any{"a", "b"}, params["List"].([]any)[1])
	assert.Equal(t, 3, rb.Len())

	rb.Run()
	assert.Equal(t, "b-1", params["Bucket"], "text results stay resolved")
	assert.Equal(t, "${Tags}", params["Tags"])
	assert.Equal(t, "${nothing}", params["Nested"].(map[string]any)["Empty"])
	assert.Equal(t, "${Tags}", params["List"].([]any)[1])

	rb.Run()
	assert.Equal(t, "${Tags}", params["Tags"], "hooks run once")
}

func TestResolveTree_UnsupportedLeaf(t *testing.T) {
	r := placeholder.NewResolver(nil)
	err := r.ResolveTree(context.Background(), map[string]any{"Body": nil}, nil, nil)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	r := placeholder.NewResolver(nil)
	in := map[string]any{"Name": "${x}"}
	out, err := r.Resolve(context.Background(), in, map[string]any{"x": "y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Name": "y"}, out)
	assert.Equal(t, "${x}", in["Name"])
}

func TestRunState_RegisterIdentity(t *testing.T) {
	s := placeholder.NewRunState(placeholder.WithGlobals(map[string]any{"region": "us-east-1"}))
	s.RegisterIdentity("admin", map[string]any{"aws_access_key_id": "AK"})

	g := s.Globals()
	assert.Equal(t, "AK", g["admin_aws_access_key_id"])
	assert.Equal(t, "us-east-1", g["region"])

	g["region"] = "changed"
	assert.Equal(t, "us-east-1", s.Globals()["region"])
}

func TestURLEncode(t *testing.T) {
	assert.Equal(t, "a/b%3Fc%26d~e", placeholder.URLEncode("a/b?c&d~e"))
}
