package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/distance/internal/ir"
)

// LoadDir unifies every .cue file in dir and compiles the result into a
// Module. Package clauses are optional and ignored, so a built-in profile
// schema copied into a directory loads as is. Files in subdirectories are
// not included.
func LoadDir(dir string) (*ir.Module, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	v := ctx.CompileString("{}")
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("reading %s: %v", file, err)}
		}
		part := ctx.CompileBytes(src, cue.Filename(file))
		if err := part.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(part)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileModule(v)
}

// FindCUEFiles returns the .cue files directly inside dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
