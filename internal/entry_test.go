package internal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mie-tools/mie/internal/testutil"
)

func TestRun_PipeMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "img.png"), testutil.NoisePNG(t, 40, 40), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Embed.BasePath = dir

	var out bytes.Buffer
	err := Run(context.Background(),
		WithConfig(cfg),
		WithStdio(strings.NewReader("![x](img.png)\n"), &out),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "data:image/jpeg;base64,") {
		t.Errorf("stdout = %q, want embedded document", out.String())
	}
}

func TestRun_FileModeBasePathDefaultsToInputDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "img.png"), testutil.NoisePNG(t, 40, 40), 0o644); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(in, []byte("![x](img.png)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.md")

	err := Run(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithInput(in),
		WithOutput(outPath),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "data:image/jpeg;base64,") {
		t.Error("relative path not resolved against the input directory")
	}
	// Input file untouched.
	orig, _ := os.ReadFile(in)
	if string(orig) != "![x](img.png)\n" {
		t.Errorf("input file modified: %q", orig)
	}
}

func TestRun_MissingInputFile(t *testing.T) {
	err := Run(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithInput(filepath.Join(t.TempDir(), "nope.md")),
		WithLogOutput(io.Discard),
	)
	if err == nil {
		t.Error("missing input file should be an error")
	}
}

func TestRun_ConfigRequired(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("missing config should be an error")
	}
}

func TestRunBatch_FailsWhenNoMatches(t *testing.T) {
	err := RunBatch(context.Background(), filepath.Join(t.TempDir(), "*.md"), true,
		WithConfig(NewDefaultConfig()),
		WithLogOutput(io.Discard),
	)
	if err == nil {
		t.Error("empty match set should be an error")
	}
}
