package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-openapi/jsonpointer"

	"aureuma/secrets-gateway/internal/secretref"
)

// FileMode names the two ways a file provider interprets its configured
// file's contents.
type FileMode string

const (
	// FileModeJSON parses the file as a JSON object and resolves each id as
	// an absolute RFC 6901 JSON pointer into it.
	FileModeJSON FileMode = "json"
	// FileModeSingleValue treats the whole (trimmed) file contents as the
	// value for the single well-known id "value".
	FileModeSingleValue FileMode = "singleValue"
)

// FileConfig configures one file-source provider alias.
type FileConfig struct {
	Path     string
	Mode     FileMode
	MaxBytes int64
	Timeout  time.Duration
}

const defaultFileMaxBytes = 1 << 20 // 1 MiB; generous for credential JSON blobs.

// FileProvider resolves refs by reading one configured file per alias and
// either JSON-pointer-indexing into it or returning its entire contents.
type FileProvider struct {
	Alias  string
	Config FileConfig
}

// Resolve implements Provider. A misconfigured or unreadable file (wrong
// permissions, missing, not a regular file, malformed JSON in json mode)
// fails the whole batch as a *ScopedError, since every ref in the batch
// reads the same file; an id that simply isn't present at its pointer
// location fails only that ref.
func (p *FileProvider) Resolve(ctx context.Context, refs []secretref.Ref) (Result, error) {
	res := newResult()

	maxBytes := p.Config.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultFileMaxBytes
	}
	timeout := p.Config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := readFileChecked(readCtx, p.Config.Path, maxBytes)
	if err != nil {
		return Result{}, NewScopedError(p.Alias, err)
	}

	switch p.Config.Mode {
	case FileModeSingleValue:
		value := strings.TrimSpace(string(data))
		for _, ref := range refs {
			if ref.ID != "value" {
				res.Errors[ref.Key()] = &ResolutionError{
					RefKey: ref.Key(),
					Err:    fmt.Errorf("singleValue mode only resolves id \"value\", got %q", ref.ID),
				}
				continue
			}
			res.Values[ref.Key()] = value
		}
		return res, nil

	case FileModeJSON:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return Result{}, NewScopedError(p.Alias, fmt.Errorf("file %s: invalid JSON: %w", p.Config.Path, err))
		}
		if _, ok := doc.(map[string]any); !ok {
			return Result{}, NewScopedError(p.Alias, fmt.Errorf("file %s: json mode requires a top-level object, got %T", p.Config.Path, doc))
		}
		for _, ref := range refs {
			ptr, err := jsonpointer.New(ref.ID)
			if err != nil {
				res.Errors[ref.Key()] = &ResolutionError{RefKey: ref.Key(), Err: fmt.Errorf("invalid json pointer %q: %w", ref.ID, err)}
				continue
			}
			v, _, err := ptr.Get(doc)
			if err != nil {
				res.Errors[ref.Key()] = &ResolutionError{RefKey: ref.Key(), Err: fmt.Errorf("pointer %q not found in %s: %w", ref.ID, p.Config.Path, err)}
				continue
			}
			res.Values[ref.Key()] = v
		}
		return res, nil

	default:
		return Result{}, NewScopedError(p.Alias, fmt.Errorf("unknown file provider mode %q", p.Config.Mode))
	}
}

// readFileChecked reads path after verifying it passes the portable
// ownership/permission check the file provider contract requires: a
// regular file, owned by the effective user, with no group/other bits set.
// The directory is opened as a scoped root so the read cannot escape via a
// crafted relative path.
func readFileChecked(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" {
		return nil, fmt.Errorf("file provider: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("file provider: stat %s: %w", abs, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("file provider: %s is a symlink, which is not permitted", abs)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("file provider: %s is not a regular file", abs)
	}
	if err := checkOwnerAndPermissions(abs, info); err != nil {
		return nil, err
	}

	dir := filepath.Dir(abs)
	base := filepath.Base(abs)
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("file provider: open directory %s: %w", dir, err)
	}
	defer root.Close()

	f, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("file provider: open %s: %w", abs, err)
	}
	defer f.Close()

	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		limited := io.LimitReader(f, maxBytes+1)
		data, err := io.ReadAll(limited)
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("file provider: reading %s: %w", abs, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("file provider: read %s: %w", abs, r.err)
		}
		if int64(len(r.data)) > maxBytes {
			return nil, fmt.Errorf("file provider: %s exceeds the %d byte limit", abs, maxBytes)
		}
		return r.data, nil
	}
}
