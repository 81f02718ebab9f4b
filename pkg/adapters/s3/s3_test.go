package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettings(t *testing.T) {
	s, err := decodeSettings(map[string]any{
		"endpoint_url":      "localhost:9000",
		"use_ssl":           "false",
		"path_style":        true,
		"connect_timeout":   "2s",
		"max_attempts":      "4",
		"aws_access_key_id": "AK",
		"identity_name":     "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", s.endpoint())
	assert.Equal(t, defaultRegion, s.RegionName)
	assert.Equal(t, 2*time.Second, s.ConnectTimeout)
	assert.Equal(t, 4, s.MaxAttempts)
	assert.Equal(t, "AK", s.AccessKeyID)
	assert.Equal(t, "admin", s.Extra["identity_name"])

	s.UseSSL = true
	assert.Equal(t, "https://localhost:9000", s.endpoint())
	s.EndpointURL = "http://other:80"
	assert.Equal(t, "http://other:80", s.endpoint())
}

func TestDecodeInput(t *testing.T) {
	var in s3.PutObjectInput
	require.NoError(t, decodeInput(map[string]any{
		"Bucket":  "b-1",
		"Key":     "k",
		"Body":    "hello",
		"Expires": "2030-01-02T03:04:05Z",
	}, &in))
	assert.Equal(t, "b-1", *in.Bucket)
	body, err := io.ReadAll(in.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	require.NotNil(t, in.Expires)
	assert.Equal(t, 2030, in.Expires.Year())

	var list s3.ListObjectsInput
	require.NoError(t, decodeInput(map[string]any{"Bucket": "b", "MaxKeys": "10"}, &list))
	assert.Equal(t, int32(10), *list.MaxKeys)

	err = decodeInput(map[string]any{"Bucket": "b", "Bogus": 1}, &list)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestToResponse(t *testing.T) {
	out := &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader("payload")),
		ContentType: ptr("text/plain"),
	}
	resp, err := toResponse(out)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp["Body"])
	assert.Equal(t, "text/plain", resp["ContentType"])
	assert.NotContains(t, resp, "ETag")
	assert.NotContains(t, resp, "ResultMetadata")
	assert.Contains(t, resp, "ResponseMetadata")
}

func TestServiceError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	wrapped := &smithy.OperationError{
		ServiceID:     "S3",
		OperationName: "GetObject",
		Err: &awshttp.ResponseError{
			ResponseError: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 403}},
				Err:      apiErr,
			},
			RequestID: "req-1",
		},
	}

	err := serviceError("GetObject", wrapped)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "AccessDenied", se.Code)
	assert.Equal(t, "denied", se.Message)
	assert.Equal(t, 403, se.StatusCode)
	assert.Equal(t, "req-1", se.RequestID)

	plain := errors.New("dial tcp: refused")
	assert.Same(t, plain, serviceError("GetObject", plain))
}

// fakeS3 answers just enough of the REST protocol for the binding tests.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amz-request-id", "req-42")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			w.Header().Set("Content-Type", "application/xml")
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult><Owner><ID>o</ID></Owner><Buckets><Bucket><Name>alpha</Name></Bucket></Buckets></ListAllMyBucketsResult>`)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBinding_Invoke(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	srv := fakeS3(t)
	ctx := context.Background()

	p := NewProvider(WithHeaders(map[string]string{"X-Test": "1"}))
	b, err := p.Open(ctx, ServiceName, domain.AnonymousIdentity, map[string]any{
		"endpoint_url": srv.URL,
		"path_style":   true,
		"max_attempts": 1,
	})
	require.NoError(t, err)
	defer b.Close()
	assert.Contains(t, b.SupportedOperations(), "ListObjectsV2")

	resp, err := b.Invoke(ctx, "ListBuckets", nil)
	require.NoError(t, err)
	buckets := resp["Buckets"].([]any)
	require.Len(t, buckets, 1)
	assert.Equal(t, "alpha", buckets[0].(map[string]any)["Name"])
	meta := resp["ResponseMetadata"].(map[string]any)
	assert.Equal(t, 200, meta["HTTPStatusCode"])
	assert.Equal(t, "req-42", meta["RequestId"])

	_, err = b.Invoke(ctx, "HeadBucket", map[string]any{"Bucket": "missing"})
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "404", se.Code)
	assert.Equal(t, 404, se.StatusCode)

	_, err = b.Invoke(ctx, "FrobnicateBucket", nil)
	assert.ErrorIs(t, err, domain.ErrOperationUndefined)
}

func TestProvider_RejectsOtherServices(t *testing.T) {
	_, err := NewProvider().Open(context.Background(), "iam", "admin", nil)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func ptr[T any](v T) *T { return &v }
