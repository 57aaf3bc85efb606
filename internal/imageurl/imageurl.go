// Package imageurl turns stored card image keys into short-lived URLs a
// reviewer's browser can load.
package imageurl

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/resilience"
)

// Signer issues a URL for one object key.
type Signer interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// presigner is the part of *s3.PresignClient used here.
type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Signer presigns GET requests against a bucket.
type S3Signer struct {
	bucket string
	client presigner
}

// NewS3Signer loads AWS credentials from the default chain.
func NewS3Signer(ctx context.Context, bucket, region string) (*S3Signer, error) {
	if bucket == "" {
		return nil, eris.New("imageurl: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "imageurl: load aws config")
	}
	return &S3Signer{bucket: bucket, client: s3.NewPresignClient(s3.NewFromConfig(awsCfg))}, nil
}

func (s *S3Signer) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", eris.Wrapf(err, "imageurl: presign %s", key)
	}
	return req.URL, nil
}

// Local serves demo images from a static path; keys map straight onto it.
type Local struct {
	BaseURL string
}

func (l Local) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return strings.TrimRight(l.BaseURL, "/") + "/" + strings.TrimLeft(key, "/"), nil
}

// Images are the resolved URLs for one card. Empty means unavailable.
type Images struct {
	Front string `json:"front_url"`
	Back  string `json:"back_url,omitempty"`
}

// Resolver wraps a Signer so callers never see an error: a failed signature
// renders as a missing image, not a broken review.
type Resolver struct {
	signer Signer
	ttl    time.Duration
	retry  resilience.RetryConfig
}

// NewResolver creates a Resolver. A zero ttl defaults to 15 minutes.
func NewResolver(signer Signer, ttl time.Duration, retry resilience.RetryConfig) *Resolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	retry.ShouldRetry = func(err error) bool { return !eris.Is(err, context.Canceled) }
	retry.OnRetry = resilience.RetryLogger("imageurl", "sign")
	return &Resolver{signer: signer, ttl: ttl, retry: retry}
}

// Resolve returns a URL for key, or "" when key is empty or signing fails.
func (r *Resolver) Resolve(ctx context.Context, key string) string {
	if key == "" || r == nil || r.signer == nil {
		return ""
	}
	url, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.signer.SignedURL(ctx, key, r.ttl)
	})
	if err != nil {
		zap.L().Warn("imageurl: signing failed, rendering without image",
			zap.String("key", key),
			zap.Error(err),
		)
		return ""
	}
	return url
}

// ResolveCard resolves both sides. The back is left empty when the
// two-sided capability is off.
func (r *Resolver) ResolveCard(ctx context.Context, card model.PendingCard, twoSided bool) Images {
	img := Images{Front: r.Resolve(ctx, card.FrontImageKey)}
	if twoSided {
		img.Back = r.Resolve(ctx, card.BackImageKey)
	}
	return img
}
