// Package upload implements the upload-location gateway (C5): presigned PUT
// issuance, content read-back with type sniffing, age filtering, and
// archival to cold storage. Grounded in the reference service's aws-sdk-go
// v1 S3 client usage and the original source's
// S3UploadLocationRepository.
package upload

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
	"github.com/epistemix-platform/simcontrol/internal/platform/sanitize"
)

// Gateway is the upload-location gateway contract (C5).
type Gateway interface {
	GetUploadLocation(ctx context.Context, upload kernel.JobUpload, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error)
	ReadContent(ctx context.Context, location *kernel.UploadLocation) (*kernel.UploadContent, error)
	FilterByAge(ctx context.Context, locations []*kernel.UploadLocation, threshold time.Time) ([]*kernel.UploadLocation, error)
	ArchiveUploads(ctx context.Context, locations []*kernel.UploadLocation, ageThreshold *time.Time) ([]*kernel.UploadLocation, error)
}

const defaultExpiration = 1 * time.Hour

// S3Gateway is the production implementation backed by an S3-compatible
// object store via aws-sdk-go v1.
type S3Gateway struct {
	client *s3.S3
	bucket string
}

func NewS3Gateway(sess *session.Session, bucket string) *S3Gateway {
	return &S3Gateway{client: s3.New(sess), bucket: bucket}
}

func keyFor(upload kernel.JobUpload, prefix kernel.KeyPrefix) (string, error) {
	switch {
	case upload.Context == kernel.ContextJob && upload.Type == kernel.UploadInput:
		return prefix.JobInputKey(), nil
	case upload.Context == kernel.ContextJob && upload.Type == kernel.UploadConfig:
		return prefix.JobConfigKey(), nil
	case upload.Context == kernel.ContextRun && upload.Type == kernel.UploadConfig:
		return prefix.RunConfigKey(upload.RunID), nil
	case upload.Context == kernel.ContextRun && upload.Type == kernel.UploadResults:
		return prefix.RunResultsKey(upload.RunID), nil
	case upload.Context == kernel.ContextRun && upload.Type == kernel.UploadLogs:
		return prefix.RunLogsKey(upload.RunID), nil
	default:
		return "", kernel.NewValidationError("no key mapping for context/type %s/%s", upload.Context, upload.Type)
	}
}

func (g *S3Gateway) GetUploadLocation(ctx context.Context, upload kernel.JobUpload, prefix kernel.KeyPrefix) (*kernel.UploadLocation, error) {
	if err := kernel.ValidateContextType(upload.Context, upload.Type); err != nil {
		return nil, err
	}
	key, err := keyFor(upload, prefix)
	if err != nil {
		return nil, err
	}
	req, _ := g.client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:               aws.String(g.bucket),
		Key:                  aws.String(key),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	url, err := req.Presign(defaultExpiration)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &kernel.UploadLocation{URL: url}, nil
}

func (g *S3Gateway) ReadContent(ctx context.Context, location *kernel.UploadLocation) (*kernel.UploadContent, error) {
	key, err := extractKey(location.URL, g.bucket)
	if err != nil {
		return nil, err
	}
	out, err := g.client.GetObjectWithContext(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return classifyContent(key, body)
}

func (g *S3Gateway) FilterByAge(ctx context.Context, locations []*kernel.UploadLocation, threshold time.Time) ([]*kernel.UploadLocation, error) {
	var kept []*kernel.UploadLocation
	for _, loc := range locations {
		key, err := extractKey(loc.URL, g.bucket)
		if err != nil {
			logrus.WithError(err).Warn("could not extract key for age filter, dropping")
			continue
		}
		head, err := g.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
		if err != nil {
			logrus.WithField("key", key).Warn("object missing during age filter, dropping")
			continue
		}
		if head.LastModified != nil && head.LastModified.Before(threshold) {
			kept = append(kept, loc)
		}
	}
	return kept, nil
}

func (g *S3Gateway) ArchiveUploads(ctx context.Context, locations []*kernel.UploadLocation, ageThreshold *time.Time) ([]*kernel.UploadLocation, error) {
	if len(locations) == 0 {
		return nil, nil
	}
	candidates := locations
	if ageThreshold != nil {
		filtered, err := g.FilterByAge(ctx, locations, *ageThreshold)
		if err != nil {
			return nil, err
		}
		candidates = filtered
	}
	archived := make([]*kernel.UploadLocation, 0, len(candidates))
	for _, loc := range candidates {
		key, err := extractKey(loc.URL, g.bucket)
		if err != nil {
			loc.Errors = append(loc.Errors, sanitize.Message(err.Error()))
			archived = append(archived, loc)
			continue
		}
		_, err = g.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(g.bucket),
			Key:               aws.String(key),
			CopySource:        aws.String(g.bucket + "/" + key),
			StorageClass:      aws.String(s3.StorageClassGlacier),
			MetadataDirective: aws.String(s3.MetadataDirectiveCopy),
		})
		if err != nil {
			loc.Errors = append(loc.Errors, sanitize.Message(err.Error()))
		}
		archived = append(archived, loc)
	}
	return archived, nil
}

// wrapStorageErr attaches a stack trace via pkg/errors before the message is
// scrubbed: sanitize.Message operates on the final rendered string
// regardless of what wrapped it, so the stack trace never leaks credential
// material past this boundary.
func wrapStorageErr(err error) error {
	wrapped := errors.Wrap(err, "object store error")
	return fmt.Errorf("%s", sanitize.Message(wrapped.Error()))
}

// extractKey pulls the object key out of any of the URL shapes the gateway
// can be handed: s3://bucket/key, https://bucket.s3.amazonaws.com/key,
// https://s3.amazonaws.com/bucket/key, or a signed HTTPS URL with query
// parameters, falling back to treating the whole string as a raw key.
func extractKey(raw, bucket string) (string, error) {
	u := raw
	if idx := strings.Index(u, "?"); idx >= 0 {
		u = u[:idx]
	}
	switch {
	case strings.HasPrefix(u, "s3://"):
		rest := strings.TrimPrefix(u, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", kernel.NewValidationError("malformed s3 url: %s", raw)
		}
		return parts[1], nil
	case strings.Contains(u, ".s3.amazonaws.com/"), strings.Contains(u, ".s3."):
		idx := strings.Index(u, "://")
		rest := u[idx+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", kernel.NewValidationError("malformed s3 url: %s", raw)
		}
		return rest[slash+1:], nil
	case strings.Contains(u, "s3.amazonaws.com/"):
		prefixIdx := strings.Index(u, "s3.amazonaws.com/")
		rest := u[prefixIdx+len("s3.amazonaws.com/"):]
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", kernel.NewValidationError("malformed s3 url: %s", raw)
		}
		return parts[1], nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		idx := strings.Index(u, "://")
		rest := u[idx+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", kernel.NewValidationError("malformed url: %s", raw)
		}
		return strings.TrimPrefix(rest[slash:], "/"), nil
	default:
		return u, nil
	}
}

func classifyContent(key string, body []byte) (*kernel.UploadContent, error) {
	if isZip(body) || strings.HasSuffix(key, ".zip") || strings.Contains(key, "job_input") {
		entries, err := listZipEntries(body)
		if err != nil {
			return &kernel.UploadContent{Binary: &kernel.BinaryContent{HexPreview: hexPreview(body)}}, nil
		}
		return &kernel.UploadContent{Zip: &kernel.ZipContent{Entries: entries, Summary: fmt.Sprintf("%d entries", len(entries))}}, nil
	}
	if strings.HasSuffix(key, ".json") || looksLikeJSON(body) {
		return &kernel.UploadContent{JSON: &kernel.JSONContent{Body: string(body)}}, nil
	}
	if text, encoding, ok := decodeText(body); ok {
		return &kernel.UploadContent{Text: &kernel.TextContent{Body: text, Encoding: encoding}}, nil
	}
	return &kernel.UploadContent{Binary: &kernel.BinaryContent{HexPreview: hexPreview(body)}}, nil
}

func isZip(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	sig := body[:4]
	return bytes.Equal(sig, []byte{'P', 'K', 0x03, 0x04}) || bytes.Equal(sig, []byte{'P', 'K', 0x05, 0x06})
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func listZipEntries(body []byte) ([]kernel.ZipFileEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	entries := make([]kernel.ZipFileEntry, 0, len(r.File))
	for _, f := range r.File {
		entry := kernel.ZipFileEntry{Name: f.Name, Size: int64(f.UncompressedSize64), CompressedSize: int64(f.CompressedSize64)}
		if looksLikeTextName(f.Name) && f.UncompressedSize64 < 1<<20 {
			if rc, err := f.Open(); err == nil {
				data, _ := io.ReadAll(rc)
				rc.Close()
				preview := string(data)
				if len(preview) > 500 {
					preview = preview[:500]
				}
				entry.Preview = &preview
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func looksLikeTextName(name string) bool {
	for _, suffix := range []string{".txt", ".json", ".csv", ".log", ".fred", ".cfg", ".yaml", ".yml"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func decodeText(body []byte) (string, string, bool) {
	if utf8Valid(body) {
		return string(body), "utf-8", true
	}
	// Fall back through single-byte Windows/Latin encodings: every byte
	// value is representable, so this never fails outright; it is a
	// best-effort legibility pass, not a validity check.
	return latin1Decode(body), "latin-1", true
}

func utf8Valid(b []byte) bool {
	for i := 0; i < len(b); {
		r := b[i]
		switch {
		case r < 0x80:
			i++
		case r&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return false
			}
			i += 2
		case r&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return false
			}
			i += 3
		case r&0xF8 == 0xF0:
			if i+3 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 || b[i+3]&0xC0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

func latin1Decode(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func hexPreview(body []byte) string {
	n := len(body)
	if n > 64 {
		n = 64
	}
	return fmt.Sprintf("%x", body[:n])
}
