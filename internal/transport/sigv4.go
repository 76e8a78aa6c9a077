// SigV4 signing transport for providers fronted by AWS.
//
// Provides an http.RoundTripper that signs each request with AWS SigV4
// before delegating to a base transport. Used when an OpenAI-compatible
// endpoint sits behind Bedrock or an IAM-authenticated API gateway; plug it
// into Config.HTTPClient.
package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// SigV4Transport is an http.RoundTripper that signs requests with AWS SigV4.
type SigV4Transport struct {
	credentials aws.CredentialsProvider
	service     string
	region      string
	signer      *v4.Signer
	base        http.RoundTripper
}

// NewSigV4Transport creates a signing transport for the given service (e.g.
// "bedrock") and region. Credentials come from the standard AWS credential
// chain. A nil base uses http.DefaultTransport.
func NewSigV4Transport(service, region string, base http.RoundTripper) (*SigV4Transport, error) {
	if service == "" {
		service = "bedrock"
	}
	if region == "" {
		region = "us-east-1"
	}
	if base == nil {
		base = http.DefaultTransport
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if _, err := cfg.Credentials.Retrieve(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	return &SigV4Transport{
		credentials: cfg.Credentials,
		service:     service,
		region:      region,
		signer:      v4.NewSigner(),
		base:        base,
	}, nil
}

// RoundTrip implements http.RoundTripper. It signs the request with SigV4
// before sending.
func (t *SigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body for signing: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := t.signer.SignHTTP(req.Context(), creds, req, payloadHash, t.service, t.region, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	// Reset body reader after signing
	req.Body = io.NopCloser(bytes.NewReader(body))

	return t.base.RoundTrip(req)
}
