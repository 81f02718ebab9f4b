package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"
)

// ServiceName is the only service this provider can bind.
const ServiceName = "s3"

const defaultRegion = "us-east-1"

// settings are the merged client and identity properties a binding needs.
type settings struct {
	EndpointURL     string         `mapstructure:"endpoint_url"`
	RegionName      string         `mapstructure:"region_name"`
	UseSSL          bool           `mapstructure:"use_ssl"`
	PathStyle       bool           `mapstructure:"path_style"`
	ConnectTimeout  time.Duration  `mapstructure:"connect_timeout"`
	ReadTimeout     time.Duration  `mapstructure:"read_timeout"`
	MaxAttempts     int            `mapstructure:"max_attempts"`
	AccessKeyID     string         `mapstructure:"aws_access_key_id"`
	SecretAccessKey string         `mapstructure:"aws_secret_access_key"`
	SessionToken    string         `mapstructure:"aws_session_token"`
	Extra           map[string]any `mapstructure:",remain"`
}

func decodeSettings(props map[string]any) (settings, error) {
	var s settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &s,
	})
	if err != nil {
		return s, err
	}
	if err := dec.Decode(props); err != nil {
		return s, &domain.ConfigurationError{Field: "client_config", Reason: "invalid client properties", Err: err}
	}
	if s.RegionName == "" {
		s.RegionName = defaultRegion
	}
	return s, nil
}

// endpoint returns the base endpoint with a scheme, or "" for the default.
func (s settings) endpoint() string {
	if s.EndpointURL == "" || strings.Contains(s.EndpointURL, "://") {
		return s.EndpointURL
	}
	if s.UseSSL {
		return "https://" + s.EndpointURL
	}
	return "http://" + s.EndpointURL
}

// Provider opens aws-sdk-go-v2 bindings. It implements ports.BindingProvider.
type Provider struct {
	headers map[string]string
	logger  *slog.Logger
}

// Option configures the Provider.
type Option func(*Provider)

// WithHeaders adds the headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(p *Provider) { p.headers = headers }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// NewProvider creates a provider for live storage endpoints.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open creates a client for identity. The anonymous identity is unsigned.
func (p *Provider) Open(ctx context.Context, service, identity string, props map[string]any) (ports.ClientBinding, error) {
	if service != ServiceName {
		return nil, &domain.ConfigurationError{Field: "service", Reason: fmt.Sprintf("unsupported service %q", service)}
	}
	s, err := decodeSettings(props)
	if err != nil {
		return nil, err
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if identity != domain.AnonymousIdentity {
		creds = credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken)
	}

	httpClient := awshttp.NewBuildableClient()
	if s.ReadTimeout > 0 {
		httpClient = httpClient.WithTimeout(s.ReadTimeout)
	}
	if s.ConnectTimeout > 0 {
		timeout := s.ConnectTimeout
		httpClient = httpClient.WithDialerOptions(func(d *net.Dialer) { d.Timeout = timeout })
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s.RegionName),
		config.WithCredentialsProvider(creds),
		config.WithHTTPClient(httpClient),
	}
	if s.MaxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(s.MaxAttempts))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config for %s: %w", identity, err)
	}

	endpoint := s.endpoint()
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = s.PathStyle
	})

	p.logger.Debug("opened s3 binding", "identity", identity, "endpoint", endpoint, "region", s.RegionName)
	return &Binding{
		client:   client,
		identity: identity,
		props:    props,
		headers:  p.headers,
	}, nil
}
