package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Options struct {
	Level string
	JSON  bool
	// Output defaults to stderr.
	Output io.Writer
	// Attrs are attached to every record, e.g. the running subcommand.
	Attrs []slog.Attr
}

var def atomic.Pointer[slog.Logger]

func init() {
	Configure(Options{})
}

func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cfg := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(out, cfg)
	} else {
		h = slog.NewTextHandler(out, cfg)
	}
	if len(opts.Attrs) > 0 {
		h = h.WithAttrs(opts.Attrs)
	}
	def.Store(slog.New(h))
}

// parseLevel accepts slog level names in any case, including offsets such
// as "debug+2". Anything else is info.
func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func L() *slog.Logger {
	return def.Load()
}

// Component returns the default logger tagged with component=name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// FromEnv reads VOXAUG_LOG_LEVEL and VOXAUG_LOG_JSON.
func FromEnv() Options {
	json := false
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("VOXAUG_LOG_JSON"))); err == nil {
		json = b
	}
	return Options{Level: os.Getenv("VOXAUG_LOG_LEVEL"), JSON: json}
}

func InitFromEnv() {
	Configure(FromEnv())
}
