// Package packaging implements results packaging (§4.10): zipping a
// results directory into the archive shape the platform expects, grounded
// in the original source's FredResultsPackager.
package packaging

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PackagedResults is the immutable output of packaging a results directory.
type PackagedResults struct {
	Bytes         []byte
	FileCount     int
	TotalSize     int64
	DirectoryName string
}

// InvalidResultsDirectoryError signals that resultsDir is neither a RUN*
// directory nor contains one.
type InvalidResultsDirectoryError struct {
	Dir string
}

func (e *InvalidResultsDirectoryError) Error() string {
	return fmt.Sprintf("%s is not a RUN* directory and contains no RUN* subdirectory", e.Dir)
}

// PackageDirectory zips resultsDir per the two supported shapes:
//   - resultsDir itself is a RUN* directory: entries are prefixed with its
//     basename (e.g. RUN4/data.txt).
//   - resultsDir contains one or more RUN* subdirectories: entries preserve
//     the full path relative to resultsDir.
func PackageDirectory(resultsDir string) (*PackagedResults, error) {
	info, err := os.Stat(resultsDir)
	if err != nil || !info.IsDir() {
		return nil, &InvalidResultsDirectoryError{Dir: resultsDir}
	}

	runDirs, err := findRunDirectories(resultsDir)
	if err != nil {
		return nil, err
	}
	selfIsRunDir := isRunDirectory(resultsDir)
	if !selfIsRunDir && len(runDirs) == 0 {
		return nil, &InvalidResultsDirectoryError{Dir: resultsDir}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fileCount := 0
	var totalSize int64

	err = filepath.WalkDir(resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(resultsDir, path)
		if err != nil {
			return err
		}
		arcname := calculateArchiveName(resultsDir, rel, runDirs)
		w, err := zw.Create(filepath.ToSlash(arcname))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		fileCount++
		totalSize += int64(len(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return &PackagedResults{
		Bytes:         buf.Bytes(),
		FileCount:     fileCount,
		TotalSize:     totalSize,
		DirectoryName: filepath.Base(resultsDir),
	}, nil
}

func calculateArchiveName(resultsDir, rel string, runDirs []string) string {
	if len(runDirs) > 0 {
		return rel
	}
	return filepath.Join(filepath.Base(resultsDir), rel)
}

func isRunDirectory(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(filepath.Base(dir)), "RUN")
}

func findRunDirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(strings.ToUpper(e.Name()), "RUN") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// AsInvalidDirectory lets callers branch on "invalid directory" without
// importing this package's concrete error type everywhere.
func AsInvalidDirectory(err error) bool {
	_, ok := err.(*InvalidResultsDirectoryError)
	return ok
}
