// Package surface turns dropped, picked or command-line paths into upload
// candidates and feeds them to the orchestrator.
package surface

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// ErrIsDirectory is returned for a directory path when Recursive is off.
var ErrIsDirectory = errors.New("is a directory")

// sniffLen is the prefix http.DetectContentType looks at
const sniffLen = 512

// Options controls how paths become candidates.
type Options struct {
	// Recursive expands directories into the files below them.
	Recursive bool

	// IncludeHidden keeps dot files found while walking a directory.
	IncludeHidden bool
}

// PathError reports one path that could not become a candidate.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// FromPaths builds candidates from local paths. Paths that cannot be used
// are reported individually and do not stop the rest.
func FromPaths(paths []string, opts Options) ([]models.Candidate, []error) {
	var out []models.Candidate
	var errs []error

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &PathError{Path: p, Err: err})
			continue
		}

		if info.IsDir() {
			if !opts.Recursive {
				errs = append(errs, &PathError{Path: p, Err: ErrIsDirectory})
				continue
			}
			err := walkFiles(p, opts.IncludeHidden, func(entry fileEntry) error {
				c, err := FromPath(entry.Path)
				if err != nil {
					errs = append(errs, &PathError{Path: entry.Path, Err: err})
					return nil
				}
				out = append(out, c)
				return nil
			})
			if err != nil {
				errs = append(errs, &PathError{Path: p, Err: err})
			}
			continue
		}

		c, err := FromPath(p)
		if err != nil {
			errs = append(errs, &PathError{Path: p, Err: err})
			continue
		}
		out = append(out, c)
	}

	return out, errs
}

// FromPath builds a candidate for one regular file.
func FromPath(path string) (models.Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Candidate{}, err
	}
	if info.IsDir() {
		return models.Candidate{}, ErrIsDirectory
	}
	if !info.Mode().IsRegular() {
		return models.Candidate{}, fmt.Errorf("not a regular file")
	}

	contentType, err := DetectContentType(path)
	if err != nil {
		return models.Candidate{}, err
	}

	return models.Candidate{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// DetectContentType returns the MIME type for a file: by extension first,
// then by sniffing its first bytes. ".csv" is always text/csv, since the
// platform MIME table may map it to something else or nothing.
func DetectContentType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" {
		return "text/csv", nil
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediaType, nil
		}
		return ct, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	ct := http.DetectContentType(buf[:n])
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType, nil
	}
	return ct, nil
}
