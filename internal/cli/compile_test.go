package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/compiler"
)

const schemaDir = "testdata/schema"

func runCompileCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileBuiltinProfiles(t *testing.T) {
	out, err := runCompileCmd(t, "text")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 module(s)")
	assert.Contains(t, out, "DnsPacket (fact, filter")
	assert.Contains(t, out, "ResponseError (event, error)")
	assert.Contains(t, out, "dns.qry.name")
}

func TestCompileSelectedProfile(t *testing.T) {
	out, err := runCompileCmd(t, "json", "--profile", "dns")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Modules, 1)
	assert.NotEmpty(t, resp.Data.SchemaHash)
	for _, m := range resp.Data.Modules {
		for _, spec := range m.Facts {
			assert.NotEqual(t, "IpPacket", spec.Name, "lan facts leaked into dns selection")
		}
	}
}

func TestCompileSchemaHashStable(t *testing.T) {
	first, err := runCompileCmd(t, "json", "--profile", "dns")
	require.NoError(t, err)
	second, err := runCompileCmd(t, "json", "--profile", "dns")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileUnknownProfile(t *testing.T) {
	out, err := runCompileCmd(t, "text", "--profile", "wifi")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeProfile)
	assert.Contains(t, out, "wifi")
}

func TestCompileDir(t *testing.T) {
	out, err := runCompileCmd(t, "text", "--dir", schemaDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 1 module(s), 2 type(s)")
	assert.Contains(t, out, "site.dns:")
	assert.Contains(t, out, "Unanswered (event, warning)")
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := runCompileCmd(t, "text", "--dir", schemaDir, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled schema to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Modules, 1)
	assert.Equal(t, "site.dns", result.Modules[0].Namespace)
	assert.Len(t, result.Modules[0].Facts, 2)
}

func TestCompileOutputUnwritable(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "compiled.json")

	out, err := runCompileCmd(t, "text", "--dir", schemaDir, "--output", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeWriteFailed)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := runCompileCmd(t, "text", "--dir", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "schema directory")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := runCompileCmd(t, "text", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

const invalidSchema = `
package schema

namespace: "site.bad"
facts: {
	Probe: {
		kind: "fact"
		fields: [
			{name: "Src", source: "ip.src", type: "addr"},
			{name: "Src", source: "ip.dst", type: "string"},
		]
	}
}
`

func writeSchema(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))
	return dir
}

func TestCompileInvalidSchema(t *testing.T) {
	out, err := runCompileCmd(t, "text", "--dir", writeSchema(t, invalidSchema))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "compilation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, compiler.ErrUnknownFieldType)
	assert.Contains(t, out, compiler.ErrDuplicateField)
}

func TestCompileInvalidSchemaJSON(t *testing.T) {
	out, err := runCompileCmd(t, "json", "--dir", writeSchema(t, invalidSchema))
	require.Error(t, err)

	var resp struct {
		Status string                     `json:"status"`
		Data   []compiler.ValidationError `json:"data"`
		Error  *CLIError                  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownFieldType, resp.Error.Code)
	assert.Len(t, resp.Data, 2)
}

func TestCompileVerboseOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--dir", schemaDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Compiling module site.dns: 2 fact spec(s)")
	assert.NotContains(t, buf.String(), "Compiling module")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"profile", &profileError{errors.New("unknown profile")}, ErrCodeProfile},
		{"missing dir", &compiler.CompileError{Field: "dir", Message: "schema directory: stat x: no such file"}, ErrCodeNotFound},
		{"file not dir", &compiler.CompileError{Field: "dir", Message: "not a directory: x"}, ErrCodeNotFound},
		{"no files", &compiler.CompileError{Field: "dir", Message: "no CUE files found in x"}, ErrCodeNoFiles},
		{"scan", &compiler.CompileError{Field: "dir", Message: "scanning x: denied"}, ErrCodeScanError},
		{"parse", &compiler.CompileError{Field: "facts", Message: "expected struct"}, ErrCodeLoadFailed},
		{"problems", &compiler.CompileError{
			Field:    "Probe",
			Problems: []compiler.ValidationError{{Code: compiler.ErrDuplicateField}},
		}, compiler.ErrDuplicateField},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := errorCode(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}
