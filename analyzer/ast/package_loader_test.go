package ast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImportRelatedError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`could not import github.com/acme/db (invalid package name: "")`, true},
		{"main.go:3:8: cannot find package \"acme\" in any of", true},
		{"no required module provides package github.com/acme/x; to add it", true},
		{"build constraints exclude all Go files in /src/x", true},
		{"main.go:10:2: undefined: renderPage", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsImportRelatedError(tt.msg), tt.msg)
	}
}

func TestShouldSkipPackage(t *testing.T) {
	assert.True(t, shouldSkipPackage("example.com/app/vendor/github.com/x"))
	assert.True(t, shouldSkipPackage("example.com/app/internal/generated/api"))
	assert.True(t, shouldSkipPackage("example.com/app/proto.pb"))
	assert.True(t, shouldSkipPackage("example.com/app/models_test"))
	assert.False(t, shouldSkipPackage("example.com/app/handlers"))
}

func TestCheckModuleRoot(t *testing.T) {
	path, err := checkModuleRoot(filepath.Join("testdata", "repro"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/repro", path)

	// Subdirectories resolve to the enclosing module.
	sub := filepath.Join(t.TempDir(), "mod")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "handlers", "admin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "go.mod"), []byte("module example.com/clinic\n\ngo 1.22\n"), 0o644))

	path, err = checkModuleRoot(filepath.Join(sub, "handlers", "admin"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/clinic", path)
}

func TestCheckModuleRootWithoutModuleDirective(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("go 1.22\n"), 0o644))

	_, err := checkModuleRoot(dir)
	assert.ErrorContains(t, err, "no module directive")
}
