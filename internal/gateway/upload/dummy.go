package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

// DummyGateway is a fixed-response test double, grounded in the original
// source's DummyS3UploadLocationRepository used under ENVIRONMENT=TESTING.
type DummyGateway struct {
	FixedURL string
}

func NewDummyGateway() *DummyGateway {
	return &DummyGateway{FixedURL: "https://dummy-bucket.s3.amazonaws.com/dummy-key"}
}

func (g *DummyGateway) GetUploadLocation(ctx context.Context, upload kernel.JobUpload, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error) {
	if err := kernel.ValidateContextType(upload.Context, upload.Type); err != nil {
		return nil, err
	}
	key, err := keyFor(upload, prefix)
	if err != nil {
		return nil, err
	}
	return &kernel.UploadLocation{URL: fmt.Sprintf("https://dummy-bucket.s3.amazonaws.com/%s?X-Amz-Signature=dummy", key)}, nil
}

func (g *DummyGateway) ReadContent(ctx context.Context, location *kernel.UploadLocation) (*kernel.UploadContent, error) {
	return &kernel.UploadContent{Text: &kernel.TextContent{Body: "dummy content", Encoding: "utf-8"}}, nil
}

func (g *DummyGateway) FilterByAge(ctx context.Context, locations []*kernel.UploadLocation, threshold time.Time) ([]*kernel.UploadLocation, error) {
	return locations, nil
}

func (g *DummyGateway) ArchiveUploads(ctx context.Context, locations []*kernel.UploadLocation, ageThreshold *time.Time) ([]*kernel.UploadLocation, error) {
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}
