package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:   "error",
		EnvLogNoColor: "true",
		EnvLogJSON:    "not-a-bool",
	}
	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg, func(k string) string { return env[k] })

	if cfg.Level != zerolog.ErrorLevel {
		t.Errorf("level: got %v", cfg.Level)
	}
	if !cfg.NoColor {
		t.Error("expect NoColor")
	}
	if cfg.JSON {
		t.Error("an unparsable bool must leave JSON unchanged")
	}
}

func TestNewJSON(t *testing.T) {
	var out bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, JSON: true}, "pixelsink", &out)
	logger.Debug().Msg("hidden")
	logger.Info().Int("frames", 3).Msg("shown")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("debug line logged at info level: %s", got)
	}
	if !strings.Contains(got, `"app":"pixelsink"`) || !strings.Contains(got, `"frames":3`) {
		t.Errorf("unexpected output: %s", got)
	}
}
