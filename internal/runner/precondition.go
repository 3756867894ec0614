package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PreconditionError reports a problem found before any engine work starts.
type PreconditionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// IsPreconditionError reports whether err is a PreconditionError.
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// CheckPreconditions verifies that capture is a readable file and that
// the output directory (outDir, or the capture's directory when empty)
// exists or can be created and accepts new files.
func CheckPreconditions(capture, outDir string) error {
	if capture == "" {
		return &PreconditionError{Path: capture, Reason: "no capture given"}
	}
	info, err := os.Stat(capture)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &PreconditionError{Path: capture, Reason: "capture not found"}
		}
		return &PreconditionError{Path: capture, Reason: "cannot read capture", Err: err}
	}
	if info.IsDir() {
		return &PreconditionError{Path: capture, Reason: "capture is a directory"}
	}
	f, err := os.Open(capture)
	if err != nil {
		return &PreconditionError{Path: capture, Reason: "cannot read capture", Err: err}
	}
	f.Close()

	dir := outDir
	if dir == "" {
		dir = filepath.Dir(capture)
	}
	return checkWritableDir(dir)
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PreconditionError{Path: dir, Reason: "cannot create output directory", Err: err}
	}
	probe, err := os.CreateTemp(dir, ".distance-probe-*")
	if err != nil {
		return &PreconditionError{Path: dir, Reason: "output directory is not writable", Err: err}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
