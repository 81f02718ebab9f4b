package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
)

// Service is an in-memory object store answering a subset of the S3 API with
// responses shaped like the live binding's. It backs tests and dry runs.
// Safe for concurrent use.
type Service struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	ops     map[string]operation
	calls   map[string]*atomic.Int64
	reqID   atomic.Int64
	now     func() time.Time
}

type bucket struct {
	created time.Time
	objects map[string]*object
	tags    []any
}

type object struct {
	body        []byte
	etag        string
	contentType string
	metadata    map[string]any
	modified    time.Time
}

type operation func(params map[string]any) (map[string]any, int, error)

// NewService creates an empty store.
func NewService() *Service {
	s := &Service{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	s.ops = map[string]operation{
		"ListBuckets":         s.listBuckets,
		"CreateBucket":        s.createBucket,
		"HeadBucket":          s.headBucket,
		"DeleteBucket":        s.deleteBucket,
		"PutObject":           s.putObject,
		"GetObject":           s.getObject,
		"HeadObject":          s.headObject,
		"DeleteObject":        s.deleteObject,
		"DeleteObjects":       s.deleteObjects,
		"CopyObject":          s.copyObject,
		"ListObjects":         s.listObjects,
		"ListObjectsV2":       s.listObjectsV2,
		"PutBucketTagging":    s.putBucketTagging,
		"GetBucketTagging":    s.getBucketTagging,
		"DeleteBucketTagging": s.deleteBucketTagging,
	}
	s.calls = make(map[string]*atomic.Int64, len(s.ops))
	for name := range s.ops {
		s.calls[name] = &atomic.Int64{}
	}
	return s
}

// Open implements ports.BindingProvider.
func (s *Service) Open(ctx context.Context, service, identity string, props map[string]any) (ports.ClientBinding, error) {
	return &Binding{svc: s, identity: identity, props: maps.Clone(props)}, nil
}

// Calls returns how many times an operation was invoked.
func (s *Service) Calls(operation string) int {
	if c, ok := s.calls[operation]; ok {
		return int(c.Load())
	}
	return 0
}

// Buckets returns the names of existing buckets.
func (s *Service) Buckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.buckets))
}

// Binding is one identity's view of a Service.
type Binding struct {
	svc      *Service
	identity string
	props    map[string]any
}

func (b *Binding) Identity() string { return b.identity }

func (b *Binding) SupportedOperations() []string {
	return slices.Sorted(maps.Keys(b.svc.ops))
}

func (b *Binding) Properties() map[string]any { return maps.Clone(b.props) }

func (b *Binding) Close() error { return nil }

// Invoke runs an operation. The anonymous identity is denied everything.
func (b *Binding) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, ok := b.svc.ops[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %s", op)
	}
	b.svc.calls[op].Add(1)
	reqID := fmt.Sprintf("req-%d", b.svc.reqID.Add(1))

	if b.identity == domain.AnonymousIdentity {
		return nil, &domain.ServiceError{Code: "AccessDenied", Message: "Access Denied", StatusCode: 403, RequestID: reqID}
	}

	resp, status, err := fn(params)
	if err != nil {
		if se, ok := err.(*domain.ServiceError); ok {
			se.RequestID = reqID
		}
		return nil, err
	}
	if resp == nil {
		resp = map[string]any{}
	}
	resp["ResponseMetadata"] = map[string]any{
		"HTTPStatusCode": status,
		"RequestId":      reqID,
	}
	return resp, nil
}

func serviceError(code string, status int, format string, args ...any) error {
	return &domain.ServiceError{Code: code, Message: fmt.Sprintf(format, args...), StatusCode: status}
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return fmt.Sprint(t), true
	}
}

func intParam(params map[string]any, key string, def int) int {
	switch t := params[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

func required(params map[string]any, key string) (string, error) {
	v, ok := stringParam(params, key)
	if !ok || v == "" {
		return "", &domain.ConfigurationError{Field: key, Reason: "missing required parameter"}
	}
	return v, nil
}

func (s *Service) lookup(name string) (*bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, serviceError("NoSuchBucket", 404, "The specified bucket does not exist")
	}
	return b, nil
}

func (s *Service) listBuckets(map[string]any) (map[string]any, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, 0, len(s.buckets))
	for _, name := range slices.Sorted(maps.Keys(s.buckets)) {
		out = append(out, map[string]any{
			"Name":         name,
			"CreationDate": s.buckets[name].created.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{"Buckets": out}, 200, nil
}

func (s *Service) createBucket(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	if len(name) < 3 || len(name) > 63 || strings.ToLower(name) != name {
		return nil, 0, serviceError("InvalidBucketName", 400, "The specified bucket is not valid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; ok {
		return nil, 0, serviceError("BucketAlreadyOwnedByYou", 409, "Your previous request to create the named bucket succeeded and you already own it")
	}
	s.buckets[name] = &bucket{created: s.now(), objects: make(map[string]*object)}
	return map[string]any{"Location": "/" + name}, 200, nil
}

func (s *Service) headBucket(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.buckets[name]; !ok {
		return nil, 0, serviceError("404", 404, "Not Found")
	}
	return nil, 200, nil
}

func (s *Service) deleteBucket(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	if len(b.objects) > 0 {
		return nil, 0, serviceError("BucketNotEmpty", 409, "The bucket you tried to delete is not empty")
	}
	delete(s.buckets, name)
	return nil, 204, nil
}

func (s *Service) putObject(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	key, err := required(params, "Key")
	if err != nil {
		return nil, 0, err
	}
	body, _ := stringParam(params, "Body")
	contentType, ok := stringParam(params, "ContentType")
	if !ok {
		contentType = "binary/octet-stream"
	}
	meta, _ := params["Metadata"].(map[string]any)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	sum := md5.Sum([]byte(body))
	obj := &object{
		body:        []byte(body),
		etag:        `"` + hex.EncodeToString(sum[:]) + `"`,
		contentType: contentType,
		metadata:    domain.CopyMap(meta),
		modified:    s.now(),
	}
	b.objects[key] = obj
	return map[string]any{"ETag": obj.etag}, 200, nil
}

func (s *Service) object(params map[string]any, missingCode string) (*object, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, err
	}
	key, err := required(params, "Key")
	if err != nil {
		return nil, err
	}
	b, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, serviceError(missingCode, 404, "The specified key does not exist")
	}
	return obj, nil
}

func (s *Service) getObject(params map[string]any) (map[string]any, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, err := s.object(params, "NoSuchKey")
	if err != nil {
		return nil, 0, err
	}
	return map[string]any{
		"Body":          string(obj.body),
		"ContentLength": len(obj.body),
		"ContentType":   obj.contentType,
		"ETag":          obj.etag,
		"LastModified":  obj.modified.UTC().Format(time.RFC3339),
		"Metadata":      domain.CopyMap(obj.metadata),
	}, 200, nil
}

func (s *Service) headObject(params map[string]any) (map[string]any, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, err := s.object(params, "404")
	if err != nil {
		return nil, 0, err
	}
	return map[string]any{
		"ContentLength": len(obj.body),
		"ContentType":   obj.contentType,
		"ETag":          obj.etag,
	}, 200, nil
}

func (s *Service) deleteObject(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	key, err := required(params, "Key")
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	delete(b.objects, key)
	return nil, 204, nil
}

func (s *Service) deleteObjects(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	del, _ := params["Delete"].(map[string]any)
	objects, _ := del["Objects"].([]any)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	deleted := make([]any, 0, len(objects))
	for _, o := range objects {
		m, ok := o.(map[string]any)
		if !ok {
			continue
		}
		key, ok := stringParam(m, "Key")
		if !ok {
			continue
		}
		delete(b.objects, key)
		deleted = append(deleted, map[string]any{"Key": key})
	}
	return map[string]any{"Deleted": deleted}, 200, nil
}

func (s *Service) copyObject(params map[string]any) (map[string]any, int, error) {
	source, err := required(params, "CopySource")
	if err != nil {
		return nil, 0, err
	}
	srcBucket, srcKey, ok := strings.Cut(strings.TrimPrefix(source, "/"), "/")
	if !ok {
		return nil, 0, serviceError("InvalidArgument", 400, "Invalid copy source")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := s.object(map[string]any{"Bucket": srcBucket, "Key": srcKey}, "NoSuchKey")
	if err != nil {
		return nil, 0, err
	}
	dst, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	key, err := required(params, "Key")
	if err != nil {
		return nil, 0, err
	}
	b, err := s.lookup(dst)
	if err != nil {
		return nil, 0, err
	}
	cp := *src
	cp.body = slices.Clone(src.body)
	cp.modified = s.now()
	b.objects[key] = &cp
	return map[string]any{"CopyObjectResult": map[string]any{"ETag": cp.etag}}, 200, nil
}

// page returns keys after marker with the given prefix, at most maxKeys.
func (b *bucket) page(prefix, marker string, maxKeys int) ([]string, bool) {
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) && k > marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if maxKeys >= 0 && len(keys) > maxKeys {
		return keys[:maxKeys], true
	}
	return keys, false
}

func (b *bucket) contents(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		obj := b.objects[k]
		out = append(out, map[string]any{
			"Key":          k,
			"Size":         len(obj.body),
			"ETag":         obj.etag,
			"LastModified": obj.modified.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (s *Service) listObjects(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	prefix, _ := stringParam(params, "Prefix")
	marker, _ := stringParam(params, "Marker")
	maxKeys := intParam(params, "MaxKeys", 1000)

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	keys, truncated := b.page(prefix, marker, maxKeys)
	resp := map[string]any{
		"Name":        name,
		"Prefix":      prefix,
		"Marker":      marker,
		"MaxKeys":     maxKeys,
		"IsTruncated": truncated,
	}
	if len(keys) > 0 {
		resp["Contents"] = b.contents(keys)
	}
	if truncated {
		resp["NextMarker"] = keys[len(keys)-1]
	}
	return resp, 200, nil
}

func (s *Service) listObjectsV2(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	prefix, _ := stringParam(params, "Prefix")
	after, _ := stringParam(params, "StartAfter")
	if token, ok := stringParam(params, "ContinuationToken"); ok {
		after = token
	}
	maxKeys := intParam(params, "MaxKeys", 1000)

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	keys, truncated := b.page(prefix, after, maxKeys)
	resp := map[string]any{
		"Name":        name,
		"Prefix":      prefix,
		"MaxKeys":     maxKeys,
		"KeyCount":    len(keys),
		"IsTruncated": truncated,
	}
	if len(keys) > 0 {
		resp["Contents"] = b.contents(keys)
	}
	if truncated {
		resp["NextContinuationToken"] = keys[len(keys)-1]
	}
	return resp, 200, nil
}

func (s *Service) putBucketTagging(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	tagging, _ := params["Tagging"].(map[string]any)
	tags, _ := tagging["TagSet"].([]any)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	b.tags = domain.CopyValue(tags).([]any)
	return nil, 204, nil
}

func (s *Service) getBucketTagging(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	if b.tags == nil {
		return nil, 0, serviceError("NoSuchTagSet", 404, "The TagSet does not exist")
	}
	return map[string]any{"TagSet": domain.CopyValue(b.tags)}, 200, nil
}

func (s *Service) deleteBucketTagging(params map[string]any) (map[string]any, int, error) {
	name, err := required(params, "Bucket")
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	b.tags = nil
	return nil, 204, nil
}
