package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// DownloadedFile records the outcome of materializing one upload locally.
type DownloadedFile struct {
	Filename string
	Err      error
}

// DownloadJobUploads fetches every job/run upload for jobID with its content
// and writes each one into outputDir, skipping files that already exist
// unless force is set. This is the runner's C10 Download stage and the CLI's
// `jobs uploads download` command, both driven over the client SDK rather
// than any direct repository or object-store access.
//
// Text and JSON uploads are written verbatim. Binary uploads carry only a
// hex preview at the transport boundary (see kernel.BinaryContent) -- the
// full object is instead fetched through its own presigned URL at the point
// of submission (job_input.zip, run config, results), so this path writes
// the preview for inspection purposes only.
func (c *Client) DownloadJobUploads(ctx context.Context, jobID int64, outputDir string, force bool) ([]DownloadedFile, error) {
	if ctx == nil {
		return nil, ErrContextRequired
	}
	uploads, err := c.GetJobUploads(ctx, jobID, true)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	var out []DownloadedFile
	var errs *multierror.Error
	downloaded := 0
	for _, u := range uploads {
		filename := defaultUploadFilename(u)
		path := filepath.Join(outputDir, filename)
		if !force {
			if _, err := os.Stat(path); err == nil {
				out = append(out, DownloadedFile{Filename: filename})
				continue
			}
		}
		data, err := renderUploadContent(u.Content)
		if err != nil {
			out = append(out, DownloadedFile{Filename: filename, Err: err})
			errs = multierror.Append(errs, err)
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			out = append(out, DownloadedFile{Filename: filename, Err: err})
			errs = multierror.Append(errs, err)
			continue
		}
		downloaded++
		out = append(out, DownloadedFile{Filename: filename})
	}
	if downloaded == 0 && len(uploads) > 0 && errs.ErrorOrNil() != nil {
		return out, fmt.Errorf("no uploads could be downloaded for job %d: %w", jobID, errs)
	}
	return out, nil
}

func defaultUploadFilename(u UploadView) string {
	ext := defaultUploadExtension(u.Type)
	if u.Context == "run" {
		return u.Type + "_" + strconv.FormatInt(u.RunID, 10) + ext
	}
	return u.Type + ext
}

func defaultUploadExtension(uploadType string) string {
	switch uploadType {
	case "input", "results":
		return ".zip"
	case "logs":
		return ".log"
	default:
		return ".json"
	}
}

func renderUploadContent(content map[string]interface{}) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	switch content["kind"] {
	case "text":
		body, _ := content["body"].(string)
		return []byte(body), nil
	case "json":
		body, _ := content["body"].(string)
		return []byte(body), nil
	case "binary":
		preview, _ := content["hexPreview"].(string)
		return []byte(preview), nil
	default:
		return nil, nil
	}
}
