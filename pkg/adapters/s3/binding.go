package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aretw0/s3conform/pkg/domain"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Binding is an S3 client bound to one identity.
type Binding struct {
	client   *s3.Client
	identity string
	props    map[string]any
	headers  map[string]string
}

// Identity returns the identity the binding signs as.
func (b *Binding) Identity() string { return b.identity }

// Properties returns the merged client and identity properties.
func (b *Binding) Properties() map[string]any { return b.props }

// Close is a no-op; the SDK client holds no resources that need releasing.
func (b *Binding) Close() error { return nil }

// SupportedOperations lists the bound operation names, sorted.
func (b *Binding) SupportedOperations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke decodes params into the operation input, calls it and renders the
// output as a response map.
func (b *Binding) Invoke(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	op, ok := operations[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOperationUndefined, operation)
	}
	resp, err := op(ctx, b.client, params, b.withHeaders)
	if err != nil {
		return nil, serviceError(operation, err)
	}
	return resp, nil
}

func (b *Binding) withHeaders(o *s3.Options) {
	for k, v := range b.headers {
		o.APIOptions = append(o.APIOptions, smithyhttp.AddHeaderValue(k, v))
	}
}

// serviceError converts a structured API failure into *domain.ServiceError.
// Other errors are returned unchanged.
func serviceError(operation string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	se := &domain.ServiceError{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.HTTPStatusCode()
		se.RequestID = respErr.ServiceRequestID()
	}
	// HEAD responses carry no body, so the status is the only code there is.
	if (operation == "HeadBucket" || operation == "HeadObject") && se.StatusCode != 0 {
		se.Code = strconv.Itoa(se.StatusCode)
	}
	return se
}
