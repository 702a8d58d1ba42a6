package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDefaults(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, "", false))
	assert.Contains(t, out.String(), "msys_128")
	assert.Contains(t, out.String(), "msys_512")
	// 32*128 + 8*512
	assert.Contains(t, out.String(), "8192")
}

func TestRunDump(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, "", true))
	assert.Contains(t, out.String(), "[kernel]")
	assert.Contains(t, out.String(), "ticks_per_sec = 1000")
}

func TestRunRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[kernel]\nticks_per_sec = 0\n"), 0o644))
	assert.Error(t, run(&bytes.Buffer{}, path, false))
}
