// Package results implements the results gateway (C6): a server-side PUT
// of a packaged results archive using ambient credentials, and a presigned
// GET for later retrieval. Every error returned here has passed through
// platform/sanitize before it can carry credential material.
package results

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/platform/sanitize"
)

// Gateway is the results gateway contract (C6).
type Gateway interface {
	UploadResults(ctx context.Context, jobID, runID int64, zipBytes []byte, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error)
	GetDownloadURL(ctx context.Context, resultsURL string, expiration time.Duration) (*kernel.UploadLocation, error)
}

const defaultDownloadExpiration = 24 * time.Hour

type S3Gateway struct {
	client *s3.S3
	bucket string
	region string
}

func NewS3Gateway(sess *session.Session, bucket, region string) *S3Gateway {
	return &S3Gateway{client: s3.New(sess), bucket: bucket, region: region}
}

func (g *S3Gateway) UploadResults(ctx context.Context, jobID, runID int64, zipBytes []byte, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error) {
	key := prefix.RunResultsKey(runID)
	_, err := g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(zipBytes),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		wrapped := errors.Wrap(err, "results upload failed")
		return nil, fmt.Errorf("%s", sanitize.Message(wrapped.Error()))
	}
	return &kernel.UploadLocation{URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", g.bucket, key)}, nil
}

func (g *S3Gateway) GetDownloadURL(ctx context.Context, resultsURL string, expiration time.Duration) (*kernel.UploadLocation, error) {
	if expiration <= 0 {
		expiration = defaultDownloadExpiration
	}
	key, err := extractResultsKey(resultsURL, g.bucket)
	if err != nil {
		return nil, err
	}
	req, _ := g.client.GetObjectRequest(&s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	url, err := req.Presign(expiration)
	if err != nil {
		wrapped := errors.Wrap(err, "could not presign download")
		return nil, fmt.Errorf("%s", sanitize.Message(wrapped.Error()))
	}
	return &kernel.UploadLocation{URL: url}, nil
}

func extractResultsKey(raw, bucket string) (string, error) {
	u := raw
	if idx := strings.Index(u, "?"); idx >= 0 {
		u = u[:idx]
	}
	if strings.HasPrefix(u, "s3://") {
		rest := strings.TrimPrefix(u, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", kernel.NewValidationError("malformed results url")
		}
		return parts[1], nil
	}
	marker := bucket + ".s3"
	if idx := strings.Index(u, marker); idx >= 0 {
		rest := u[idx:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", kernel.NewValidationError("malformed results url")
		}
		return rest[slash+1:], nil
	}
	if idx := strings.Index(u, "s3.amazonaws.com/"); idx >= 0 {
		rest := u[idx+len("s3.amazonaws.com/"):]
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", kernel.NewValidationError("malformed results url")
		}
		return parts[1], nil
	}
	return u, nil
}

// DummyGateway is a test double that stores results in memory, used under
// ENVIRONMENT=TESTING.
type DummyGateway struct {
	Uploaded map[string][]byte
}

func NewDummyGateway() *DummyGateway {
	return &DummyGateway{Uploaded: map[string][]byte{}}
}

func (g *DummyGateway) UploadResults(ctx context.Context, jobID, runID int64, zipBytes []byte, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error) {
	key := prefix.RunResultsKey(runID)
	g.Uploaded[key] = zipBytes
	return &kernel.UploadLocation{URL: fmt.Sprintf("https://dummy-bucket.s3.amazonaws.com/%s", key)}, nil
}

func (g *DummyGateway) GetDownloadURL(ctx context.Context, resultsURL string, expiration time.Duration) (*kernel.UploadLocation, error) {
	return &kernel.UploadLocation{URL: resultsURL + "?X-Amz-Signature=dummy"}, nil
}
