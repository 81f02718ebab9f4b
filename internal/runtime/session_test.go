package runtime_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/s3conform/internal/placeholder"
	"github.com/aretw0/s3conform/internal/runtime"
	"github.com/aretw0/s3conform/pkg/adapters/memory"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminOnly = map[string]map[string]any{
	domain.AdminIdentity: {"aws_access_key_id": "AK", "aws_secret_access_key": "SK"},
}

func branch(cases ...*domain.CaseNode) *domain.Branch {
	return &domain.Branch{Cases: cases}
}

func definition(branches ...*domain.Branch) *domain.SuiteDefinition {
	return &domain.SuiteDefinition{Branches: branches}
}

func source(def *domain.SuiteDefinition) []*domain.SuiteSource {
	return []*domain.SuiteSource{{Service: "s3", Name: "basic", Definition: def}}
}

func status(code int) map[string]any {
	return map[string]any{domain.StatusCodePath: code}
}

func newSession(t *testing.T, svc *memory.Service, def *domain.SuiteDefinition, opts ...runtime.Option) *runtime.Session {
	t.Helper()
	opts = append([]runtime.Option{runtime.WithIdentities(adminOnly)}, opts...)
	s := runtime.NewSession("s3", source(def), svc, opts...)
	require.NoError(t, s.SetUp(context.Background()))
	t.Cleanup(s.TearDown)
	return s
}

func TestSession_ForkedSuitesAreIsolated(t *testing.T) {
	// Setup
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "SetVars", Parameters: map[string]any{"Bucket": "@{bucketName()}"}},
		&domain.CaseNode{
			Operation:      "CreateBucket",
			ClientIdentity: domain.AdminIdentity,
			Parameters:     map[string]any{"Bucket": "${Bucket}"},
			Assertion:      status(200),
			Suites: definition(
				branch(&domain.CaseNode{Title: "PutA", Operation: "PutObject", ClientIdentity: domain.AdminIdentity,
					Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "a", "Body": "1"}}),
				branch(&domain.CaseNode{Title: "PutB", Operation: "PutObject", ClientIdentity: domain.AdminIdentity,
					Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "b", "Body": "2"}}),
			),
		},
		&domain.CaseNode{
			Operation:      "ListObjectsV2",
			ClientIdentity: domain.AdminIdentity,
			Parameters:     map[string]any{"Bucket": "${Bucket}"},
			Assertion:      map[string]any{"KeyCount": 1},
		},
	))
	s := newSession(t, svc, def,
		runtime.WithConcurrency(2),
		runtime.WithTeardown(runtime.DefaultTeardown()),
		runtime.WithRunState(placeholder.NewRunState(placeholder.WithBucketPrefix("iso"))),
	)

	// Execution
	require.NoError(t, s.Run(context.Background()))

	// Verification
	suites := s.Suites()
	require.Len(t, suites, 2)
	buckets := map[any]bool{}
	for _, suite := range suites {
		assert.Equal(t, domain.SuitePassed, suite.State, suite.FullPath)
		buckets[suite.Cases[1].Parameters["Bucket"]] = true
	}
	assert.Len(t, buckets, 2, "each suite creates its own bucket")
	assert.Empty(t, svc.Buckets(), "teardown drops every bucket")
	assert.Equal(t, 2, svc.Calls("DeleteBucket"))

	sum := s.Summary()
	assert.Equal(t, 2, sum.SuitePassCount)
	assert.Equal(t, 8, sum.CasePassCount)
}

func TestSession_FirstFailureSkipsRemainingCases(t *testing.T) {
	svc := memory.NewService()
	admin := domain.AdminIdentity
	def := definition(branch(
		&domain.CaseNode{Operation: "CreateBucket", ClientIdentity: admin,
			Parameters:  map[string]any{"Bucket": "short-1"},
			SuiteLocals: map[string]any{"Bucket": "${Bucket}"}},
		&domain.CaseNode{Operation: "PutObject", ClientIdentity: admin,
			Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "k", "Body": "v"}},
		&domain.CaseNode{Operation: "GetObject", ClientIdentity: admin,
			Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "k"},
			Assertion:  status(500)},
		&domain.CaseNode{Operation: "HeadObject", ClientIdentity: admin,
			Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "k"}},
		&domain.CaseNode{Operation: "DeleteObject", ClientIdentity: admin,
			Parameters: map[string]any{"Bucket": "${Bucket}", "Key": "k"}},
	))
	s := newSession(t, svc, def, runtime.WithTeardown(runtime.DefaultTeardown()))

	require.NoError(t, s.Run(context.Background()))

	suite := s.Suites()[0]
	assert.Equal(t, domain.SuiteFailed, suite.State)
	cases := suite.Cases
	assert.True(t, cases[0].Passed())
	assert.True(t, cases[1].Passed())
	assert.True(t, cases[2].Failed())
	assert.Equal(t, "GetObject-200", cases[2].Title)
	assert.Contains(t, cases[2].ErrorInfo, "AssertionError")
	assert.NotNil(t, cases[2].Response)
	assert.False(t, cases[3].Executed())
	assert.False(t, cases[4].Executed())
	assert.Equal(t, 0, svc.Calls("HeadObject"))

	// teardown still ran and removed the object and bucket
	assert.Empty(t, svc.Buckets())
	assert.Equal(t, 3, s.ExtraCalls())

	sum := s.Summary()
	assert.Equal(t, domain.Summary{
		SuiteTotal:       1,
		SuiteFailedCount: 1,
		CaseTotal:        5,
		CasePassCount:    2,
		CaseFailedCount:  1,
		CaseSkippedCount: 2,
		APIInvokedCount:  6,
	}, sum)
}

func TestSession_ServiceErrorIsAResponse(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "HeadBucket", ClientIdentity: domain.AdminIdentity,
			Parameters: map[string]any{"Bucket": "nowhere"},
			Assertion:  status(404)},
	))
	s := newSession(t, svc, def)

	require.NoError(t, s.Run(context.Background()))

	suite := s.Suites()[0]
	assert.Equal(t, domain.SuitePassed, suite.State)
	assert.Equal(t, "404", suite.Cases[0].Response["Error"].(map[string]any)["Code"])
}

func TestSession_UnknownOperationFailsCase(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "FrobnicateBucket", ClientIdentity: domain.AdminIdentity},
	))
	s := newSession(t, svc, def)

	require.NoError(t, s.Run(context.Background()))

	c := s.Suites()[0].Cases[0]
	assert.True(t, c.Failed())
	assert.Contains(t, c.ErrorInfo, "ConfigurationError")
	assert.Empty(t, c.Title, "no response leaves the title alone")
}

func TestSession_UnknownIdentityFailsCase(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: "ghost"},
	))
	s := newSession(t, svc, def)

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, domain.SuiteFailed, s.Suites()[0].State)
	assert.Equal(t, 0, svc.Calls("ListBuckets"))
}

func TestSession_TeardownErrorsDoNotChangeOutcome(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity, Assertion: status(200)},
	))
	broken := &domain.CaseNode{Operation: "DropBucket", ClientIdentity: "ghost", Parameters: map[string]any{"Bucket": "x"}}
	s := newSession(t, svc, def, runtime.WithTeardown(broken))

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, domain.SuitePassed, s.Suites()[0].State)
	assert.False(t, broken.Executed(), "teardown runs on a copy")
}

func TestSession_TeardownIsNotReportedAsCase(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity},
	))
	var mu sync.Mutex
	var ops []string
	hooks := domain.LifecycleHooks{
		OnCaseFinish: func(_ context.Context, e *domain.CaseEvent) {
			mu.Lock()
			defer mu.Unlock()
			ops = append(ops, e.Operation)
		},
	}
	teardown := &domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity}
	s := newSession(t, svc, def, runtime.WithTeardown(teardown), runtime.WithLifecycleHooks(hooks))

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 2, svc.Calls("ListBuckets"), "teardown still runs")
	assert.Equal(t, []string{"ListBuckets"}, ops)
	assert.Equal(t, s.Summary().CaseTotal, len(ops))
}

func TestSession_ParametersRolledBackAfterCase(t *testing.T) {
	svc := memory.NewService()
	tags := []any{map[string]any{"Key": "k", "Value": "v"}}
	def := definition(branch(
		&domain.CaseNode{Operation: "SetVars", Parameters: map[string]any{"Bucket": "roll-1", "TagSet": tags}},
		&domain.CaseNode{Operation: "CreateBucket", ClientIdentity: domain.AdminIdentity,
			Parameters: map[string]any{"Bucket": "${Bucket}"}},
		&domain.CaseNode{Operation: "PutBucketTagging", ClientIdentity: domain.AdminIdentity,
			Parameters: map[string]any{"Bucket": "${Bucket}", "Tagging": map[string]any{"TagSet": "${TagSet}"}},
			Assertion:  status(204)},
		&domain.CaseNode{Operation: "GetBucketTagging", ClientIdentity: domain.AdminIdentity,
			Parameters: map[string]any{"Bucket": "${Bucket}"},
			Assertion:  map[string]any{"TagSet": "${TagSet}"}},
	))
	s := newSession(t, svc, def)

	require.NoError(t, s.Run(context.Background()))

	suite := s.Suites()[0]
	require.Equal(t, domain.SuitePassed, suite.State, suite.Cases[len(suite.Cases)-1].ErrorInfo)
	tagging := suite.Cases[2].Parameters["Tagging"].(map[string]any)
	assert.Equal(t, "${TagSet}", tagging["TagSet"], "non-scalar values are restored after the case")
	assert.Equal(t, "roll-1", suite.Cases[2].Parameters["Bucket"])
	assert.Equal(t, "${TagSet}", suite.Cases[3].Assertion["TagSet"], "assertions keep their authored form")
}

func TestSession_IdentityPropertiesAreGlobals(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(
		&domain.CaseNode{Operation: "SetVars", Parameters: map[string]any{"Key": "${admin_aws_access_key_id}"},
			Assertion: map[string]any{"Key": "AK"}},
	))
	s := newSession(t, svc, def)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, domain.SuitePassed, s.Suites()[0].State)
}

func TestSession_FilterSkipsSuites(t *testing.T) {
	svc := memory.NewService()
	def := &domain.SuiteDefinition{Branches: []*domain.Branch{
		{Name: "alpha", Cases: []*domain.CaseNode{{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity}}},
		{Name: "beta", Cases: []*domain.CaseNode{{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity}}},
	}}
	f, err := runtime.NewFilter(nil, []string{"alpha"})
	require.NoError(t, err)
	s := newSession(t, svc, def, runtime.WithFilter(f))

	require.NoError(t, s.Run(context.Background()))

	suites := s.Suites()
	require.Len(t, suites, 2)
	assert.Equal(t, domain.SuiteSkipped, suites[0].State)
	assert.Equal(t, domain.SuitePassed, suites[1].State)
	assert.Equal(t, 1, svc.Calls("ListBuckets"))
	assert.Equal(t, 1, s.Summary().CaseSkippedCount)
}

func TestSession_LifecycleHooks(t *testing.T) {
	svc := memory.NewService()
	def := definition(
		branch(&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity}),
		branch(&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity, Assertion: status(201)}),
	)

	var mu sync.Mutex
	var started, finished []string
	var failedCases int
	hooks := domain.LifecycleHooks{
		OnSuiteStart: func(_ context.Context, e *domain.SuiteEvent) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, e.SuiteID)
		},
		OnSuiteFinish: func(_ context.Context, e *domain.SuiteEvent) {
			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, string(e.State))
		},
		OnCaseFinish: func(_ context.Context, e *domain.CaseEvent) {
			mu.Lock()
			defer mu.Unlock()
			if !e.Success {
				failedCases++
			}
		},
	}
	s := newSession(t, svc, def, runtime.WithLifecycleHooks(hooks))

	require.NoError(t, s.Run(context.Background()))

	assert.Len(t, started, 2)
	assert.ElementsMatch(t, []string{"pass", "failed"}, finished)
	assert.Equal(t, 1, failedCases)
}

func TestSession_SetUpWithoutSuites(t *testing.T) {
	s := runtime.NewSession("s3", source(definition()), memory.NewService())
	err := s.SetUp(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSuites)
}

func TestSession_CancelledContext(t *testing.T) {
	svc := memory.NewService()
	def := definition(branch(&domain.CaseNode{Operation: "ListBuckets", ClientIdentity: domain.AdminIdentity}))
	s := newSession(t, svc, def)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.SuiteFailed, s.Suites()[0].State)
}
