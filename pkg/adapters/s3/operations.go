package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/mitchellh/mapstructure"
)

type operation func(ctx context.Context, client *s3.Client, params map[string]any, optFns ...func(*s3.Options)) (map[string]any, error)

// bind adapts a typed client method to the generic parameter map form.
func bind[In, Out any](call func(*s3.Client, context.Context, *In, ...func(*s3.Options)) (*Out, error)) operation {
	return func(ctx context.Context, client *s3.Client, params map[string]any, optFns ...func(*s3.Options)) (map[string]any, error) {
		in := new(In)
		if err := decodeInput(params, in); err != nil {
			return nil, err
		}
		out, err := call(client, ctx, in, optFns...)
		if err != nil {
			return nil, err
		}
		return toResponse(out)
	}
}

var operations = map[string]operation{
	"AbortMultipartUpload":            bind((*s3.Client).AbortMultipartUpload),
	"CompleteMultipartUpload":         bind((*s3.Client).CompleteMultipartUpload),
	"CopyObject":                      bind((*s3.Client).CopyObject),
	"CreateBucket":                    bind((*s3.Client).CreateBucket),
	"CreateMultipartUpload":           bind((*s3.Client).CreateMultipartUpload),
	"DeleteBucket":                    bind((*s3.Client).DeleteBucket),
	"DeleteBucketCors":                bind((*s3.Client).DeleteBucketCors),
	"DeleteBucketLifecycle":           bind((*s3.Client).DeleteBucketLifecycle),
	"DeleteBucketPolicy":              bind((*s3.Client).DeleteBucketPolicy),
	"DeleteBucketTagging":             bind((*s3.Client).DeleteBucketTagging),
	"DeleteObject":                    bind((*s3.Client).DeleteObject),
	"DeleteObjectTagging":             bind((*s3.Client).DeleteObjectTagging),
	"DeleteObjects":                   bind((*s3.Client).DeleteObjects),
	"GetBucketAcl":                    bind((*s3.Client).GetBucketAcl),
	"GetBucketCors":                   bind((*s3.Client).GetBucketCors),
	"GetBucketLifecycleConfiguration": bind((*s3.Client).GetBucketLifecycleConfiguration),
	"GetBucketLocation":               bind((*s3.Client).GetBucketLocation),
	"GetBucketPolicy":                 bind((*s3.Client).GetBucketPolicy),
	"GetBucketTagging":                bind((*s3.Client).GetBucketTagging),
	"GetBucketVersioning":             bind((*s3.Client).GetBucketVersioning),
	"GetObject":                       bind((*s3.Client).GetObject),
	"GetObjectAcl":                    bind((*s3.Client).GetObjectAcl),
	"GetObjectTagging":                bind((*s3.Client).GetObjectTagging),
	"HeadBucket":                      bind((*s3.Client).HeadBucket),
	"HeadObject":                      bind((*s3.Client).HeadObject),
	"ListBuckets":                     bind((*s3.Client).ListBuckets),
	"ListMultipartUploads":            bind((*s3.Client).ListMultipartUploads),
	"ListObjectVersions":              bind((*s3.Client).ListObjectVersions),
	"ListObjects":                     bind((*s3.Client).ListObjects),
	"ListObjectsV2":                   bind((*s3.Client).ListObjectsV2),
	"ListParts":                       bind((*s3.Client).ListParts),
	"PutBucketAcl":                    bind((*s3.Client).PutBucketAcl),
	"PutBucketCors":                   bind((*s3.Client).PutBucketCors),
	"PutBucketLifecycleConfiguration": bind((*s3.Client).PutBucketLifecycleConfiguration),
	"PutBucketPolicy":                 bind((*s3.Client).PutBucketPolicy),
	"PutBucketTagging":                bind((*s3.Client).PutBucketTagging),
	"PutBucketVersioning":             bind((*s3.Client).PutBucketVersioning),
	"PutObject":                       bind((*s3.Client).PutObject),
	"PutObjectAcl":                    bind((*s3.Client).PutObjectAcl),
	"PutObjectTagging":                bind((*s3.Client).PutObjectTagging),
	"UploadPart":                      bind((*s3.Client).UploadPart),
}

var readerType = reflect.TypeOf((*io.Reader)(nil)).Elem()

// stringToReaderHook turns text parameters into request bodies.
func stringToReaderHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != readerType {
		return data, nil
	}
	return strings.NewReader(data.(string)), nil
}

func decodeInput(params map[string]any, in any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToReaderHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		Result: in,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return &domain.ConfigurationError{Field: "parameters", Reason: "cannot decode operation input", Err: err}
	}
	return nil
}

// toResponse renders an output struct as a response map. Streaming bodies
// are read into text, unset fields are dropped and the HTTP status and
// request ID are added under ResponseMetadata.
func toResponse(out any) (map[string]any, error) {
	v := reflect.ValueOf(out).Elem()

	var body *string
	if f := v.FieldByName("Body"); f.IsValid() && f.Type().Implements(reflect.TypeOf((*io.ReadCloser)(nil)).Elem()) && !f.IsNil() {
		rc := f.Interface().(io.ReadCloser)
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		s := string(data)
		body = &s
		f.Set(reflect.Zero(f.Type()))
	}

	var md middleware.Metadata
	if f := v.FieldByName("ResultMetadata"); f.IsValid() {
		md, _ = f.Interface().(middleware.Metadata)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	delete(resp, "ResultMetadata")
	compact(resp)
	if body != nil {
		resp["Body"] = *body
	}

	meta := map[string]any{}
	if raw, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response); ok {
		meta["HTTPStatusCode"] = raw.StatusCode
	}
	if id, ok := awsmiddleware.GetRequestIDMetadata(md); ok {
		meta["RequestId"] = id
	}
	resp["ResponseMetadata"] = meta
	return resp, nil
}

// compact drops nil values recursively so absent fields stay absent.
func compact(m map[string]any) {
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			compact(t)
		case []any:
			for _, e := range t {
				if em, ok := e.(map[string]any); ok {
					compact(em)
				}
			}
		}
	}
}
