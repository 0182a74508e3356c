package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxaug/internal/fault"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func writePipeline(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	return path
}

func TestNegotiate_PrintsInputSpec(t *testing.T) {
	path := writePipeline(t, "options: {imgs: [image]}\npipeline: {type: lost_section}\n")
	out, err := execute(t, "negotiate", "-p", path, "--shape", "image=1,4,8,8")
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if out != "image: [1, 5, 8, 8]\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNegotiate_NeedsRequest(t *testing.T) {
	path := writePipeline(t, "pipeline: {type: flip_rotate}\n")
	if _, err := execute(t, "negotiate", "-p", path); !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
	if _, err := execute(t, "negotiate", "-p", path, "--shape", "image"); !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("want configuration error for a bad shape, got %v", err)
	}
}

func TestPreview_ReportsEpisodes(t *testing.T) {
	path := writePipeline(t, `options: {imgs: [image]}
pipeline: {type: flip_rotate}
preview:
  spec:
    image: [1, 4, 8, 8]
`)
	out, err := execute(t, "preview", "-p", path, "-n", "2")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if n := strings.Count(out, "episode: "); n != 2 {
		t.Fatalf("want 2 episodes, got %d:\n%s", n, out)
	}
}
