package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"":          zerolog.InfoLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Fatalf("SetLogLevel(%q) => %v, want %v", in, got, want)
		}
	}
}

func TestFlags(t *testing.T) {
	for _, v := range []string{"1", "TRUE", " yes ", "y", "On"} {
		if !IsTruthy(v) || IsFalsy(v) {
			t.Fatalf("%q should be truthy", v)
		}
	}
	for _, v := range []string{"0", "False", "no", "N", "off"} {
		if !IsFalsy(v) || IsTruthy(v) {
			t.Fatalf("%q should be falsy", v)
		}
	}
	if IsTruthy("maybe") || IsFalsy("maybe") || IsFalsy("") {
		t.Fatalf("unrecognized values are neither")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "ark-key", "other"); got != "ark-key" {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty(" ", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
