package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxaug/internal/augment"
	"voxaug/internal/fault"
)

const previewPipeline = `options:
  imgs: [image]
  segs: [label]
pipeline:
  type: compose
  children:
    - type: misalign
      disp: [2, 4]
    - type: lost_section
    - type: label
preview:
  episodes: 3
  spec:
    image: [1, 8, 16, 16]
    label: [8, 16, 16]
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	return path
}

func TestEngine_PreviewReportsEveryEpisode(t *testing.T) {
	var buf bytes.Buffer
	e, err := Bootstrap(context.Background(), Config{PipelineYml: writeFile(t, previewPipeline), Out: &buf})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "episode: "); n != 3 {
		t.Fatalf("want 3 episode reports, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "image: [1, 8, 16, 16]") || !strings.Contains(out, "label: [1, 8, 16, 16]") {
		t.Fatalf("output shapes missing from report:\n%s", out)
	}
}

func TestEngine_EpisodesOverrideAndCancel(t *testing.T) {
	var buf bytes.Buffer
	e, err := Bootstrap(context.Background(), Config{PipelineYml: writeFile(t, previewPipeline), Episodes: 1, Out: &buf})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if e.episodes != 1 {
		t.Fatalf("want 1 episode, got %d", e.episodes)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestBootstrap_NeedsPreviewSpec(t *testing.T) {
	path := writeFile(t, "pipeline: {type: flip_rotate}\n")
	if _, err := Bootstrap(context.Background(), Config{PipelineYml: path}); !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestSynthesize_BlocksForSegmentation(t *testing.T) {
	fetch := Synthesize(augment.Options{Segs: []string{"label"}})
	s, err := fetch(augment.Spec{"image": {1, 2, 4, 16}, "label": {2, 4, 16}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	seg := s["label"]
	if a, b := seg.At(0, 0, 0, 0), seg.At(0, 0, 0, blockSize); a != 1 || b != 2 {
		t.Fatalf("want ids 1 and 2 across the block edge, got %v and %v", a, b)
	}
	if seg.At(0, 1, 3, 3) != 1 {
		t.Fatalf("blocks should run through depth")
	}
	for _, v := range s["image"].Data() {
		if v < 0 || v >= 1 {
			t.Fatalf("image value %v outside [0, 1)", v)
		}
	}
}
