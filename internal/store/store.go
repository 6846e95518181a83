package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

var (
	// ErrInvalidPath is returned when a relative path escapes the content root
	ErrInvalidPath = errors.New("path escapes content root")

	// ErrNotFound is returned when a resolved path has no file behind it
	ErrNotFound = errors.New("file not found")

	// ErrEmptyReplacement is returned when a producer wrote no bytes; the
	// original file is left untouched
	ErrEmptyReplacement = errors.New("replacement content is empty")

	// ErrUnsatisfiableRange is returned when a range read starts past the
	// end of the file
	ErrUnsatisfiableRange = errors.New("range start beyond end of file")
)

// Store resolves and mutates files under a single content root. All writes
// go through ReplaceAtomically, so a reader always sees either the old bytes
// or the new bytes of a file, never a truncated mix.
type Store struct {
	root    string
	scratch string
}

// New creates a store rooted at root with scratch as the conversion scratch
// area. The root must already exist; an uncreatable scratch directory is a
// startup failure, not a per-request one.
func New(root, scratch string) (*Store, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("content root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", absRoot)
	}

	absScratch, err := filepath.Abs(scratch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch dir: %w", err)
	}

	s := &Store{root: absRoot, scratch: absScratch}
	if err := s.EnsureScratch(); err != nil {
		return nil, err
	}

	return s, nil
}

// Root returns the absolute content root.
func (s *Store) Root() string {
	return s.root
}

// Resolve maps a relative storage path to an absolute path under the content
// root. Absolute inputs and any form of ".." traversal are rejected with
// ErrInvalidPath.
func (s *Store) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}

	abs := filepath.Join(s.root, filepath.Clean(rel))

	// Join+Clean collapses traversal components; anything left outside the
	// root was an escape attempt.
	inside, err := filepath.Rel(s.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}

	return abs, nil
}

// Exists reports whether a regular file exists at the absolute path.
func (s *Store) Exists(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// ReplaceAtomically writes new content for target produced by produce, then
// renames it over the target in one step. The temp file lives in the target's
// directory so the rename never crosses filesystems. The previous file stays
// fully intact and servable until the rename succeeds; on any failure before
// that, the temp file is removed and the original is untouched.
func (s *Store) ReplaceAtomically(target string, produce func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(target)
	if err != nil {
		return fmt.Errorf("failed to create pending file: %w", err)
	}
	defer func() {
		// No-op once the replace has been committed
		_ = pending.Cleanup()
	}()

	cw := &countingWriter{w: pending}
	if err := produce(cw); err != nil {
		return fmt.Errorf("failed to produce replacement content: %w", err)
	}

	if cw.n == 0 {
		return fmt.Errorf("%s: %w", target, ErrEmptyReplacement)
	}

	// fsync + rename; the old file survives any failure up to here
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to atomically replace %s: %w", target, err)
	}

	return nil
}

// ReplaceFromFile commits an already-produced file (such as a finished
// conversion in the scratch area) as the new content of target.
func (s *Store) ReplaceFromFile(target, source string) error {
	return s.ReplaceAtomically(target, func(w io.Writer) error {
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
}

// EnsureScratch creates the scratch directory if needed. Safe to call from
// concurrent goroutines; MkdirAll is idempotent.
func (s *Store) EnsureScratch() error {
	if err := os.MkdirAll(s.scratch, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir %s: %w", s.scratch, err)
	}
	return nil
}

// ScratchPath returns an absolute path for an in-flight conversion artifact.
func (s *Store) ScratchPath(name string) string {
	return filepath.Join(s.scratch, name)
}

// Size returns the byte size of the regular file at abs.
func (s *Store) Size(abs string) (int64, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", abs, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	return info.Size(), nil
}

// ReadRange reads the inclusive byte range [start, end] from the file at abs
// and returns the data together with the file's total size. The end offset is
// clamped to the last byte of the file.
func (s *Store) ReadRange(abs string, start, end int64) ([]byte, int64, error) {
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%s: %w", abs, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", abs, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	size := info.Size()
	if start < 0 || start >= size {
		return nil, size, fmt.Errorf("offset %d in %d-byte file: %w", start, size, ErrUnsatisfiableRange)
	}
	if end >= size {
		end = size - 1
	}
	if end < start {
		return nil, size, fmt.Errorf("range [%d, %d]: %w", start, end, ErrUnsatisfiableRange)
	}

	buf := make([]byte, end-start+1)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, int64(len(buf))), buf); err != nil {
		return nil, size, fmt.Errorf("failed to read range from %s: %w", abs, err)
	}

	return buf, size, nil
}

// countingWriter tracks bytes written so an empty replacement can be refused
// before the rename.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
