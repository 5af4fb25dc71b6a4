package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestWindowCommand(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "annfetch.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("window:\n  anchor: wednesday\n"), 0o644))

	out := execute(t, "window", "--config", cfg, "--today", "2025-07-01")
	require.Equal(t, "25 Jun 2025 - 01 Jul 2025", strings.TrimSpace(out))
}

func TestUnpackCommand(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "documents")
	cfg := filepath.Join(dir, "annfetch.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output_dir: "+outDir+"\n"), 0o644))

	archivePath := filepath.Join(dir, "bulletin.zip")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("docs/GLB_11423_1.pdf")
	require.NoError(t, err)
	_, err = w.Write([]byte("%PDF-1.4 bulletin body"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := execute(t, "unpack", archivePath, "--config", cfg, "--title", "GLB 11423.1", "--date", "2025-07-01")

	want := filepath.Join(outDir, "extracted_20250701_glb-11423-1", "GLB_11423_1.pdf")
	require.Equal(t, want, strings.TrimSpace(out))
	require.FileExists(t, want)
}
