package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInitSetsGlobalLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"unknown": zerolog.InfoLevel,
	}
	for level, want := range cases {
		Init(level, "json")
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("Init(%q) set global level %v, want %v", level, got, want)
		}
	}
}

func TestGetReturnsTheGlobalLogger(t *testing.T) {
	Init("info", "json")
	l := Get()
	l.Info().Msg("logger smoke test")
}
