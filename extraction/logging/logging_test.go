package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	rt := defaultConfig(ProfileRuntime)
	if rt.Level != zerolog.InfoLevel || !rt.Timestamp || rt.NoColor {
		t.Fatalf("runtime=%+v", rt)
	}
	tc := defaultConfig(ProfileTest)
	if tc.Level != zerolog.DebugLevel || tc.Timestamp || !tc.NoColor {
		t.Fatalf("test=%+v", tc)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvLogLevel:     " WARN ",
		EnvLogTimestamp: "false",
		EnvLogNoColor:   "not-a-bool",
	}
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg, func(k string) string { return env[k] })

	if cfg.Level != zerolog.WarnLevel {
		t.Fatalf("level=%v, want warn", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("timestamp override ignored")
	}
	if cfg.NoColor {
		t.Fatalf("invalid bool should leave NoColor unchanged")
	}
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(Config{Level: zerolog.InfoLevel, NoColor: true}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("path", "data/x.json").Msg("loaded sessions")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "loaded sessions") || !strings.Contains(out, "path=data/x.json") {
		t.Fatalf("out=%q", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level should not override")
	}
	if lvl, ok := parseLevel("off"); !ok || lvl != zerolog.Disabled {
		t.Fatalf("off=%v,%v", lvl, ok)
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level should not override")
	}
}
