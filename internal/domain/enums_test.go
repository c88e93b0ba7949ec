package domain

import "testing"

func TestParseEmotion(t *testing.T) {
	for _, in := range []string{"happy", " SAD ", "Angry", "anxious", "neutral"} {
		if _, ok := ParseEmotion(in); !ok {
			t.Fatalf("ParseEmotion(%q) rejected", in)
		}
	}
	for _, in := range []string{"", "calm", "excited", "joyful"} {
		if e, ok := ParseEmotion(in); ok {
			t.Fatalf("ParseEmotion(%q) = %q; want rejection", in, e)
		}
	}
}

func TestCoerceEmotion(t *testing.T) {
	if got := CoerceEmotion("HAPPY"); got != Happy {
		t.Fatalf("got %q", got)
	}
	if got := CoerceEmotion("furious"); got != Neutral {
		t.Fatalf("unknown should coerce to neutral, got %q", got)
	}
}

func TestParseCharacter(t *testing.T) {
	if c, ok := ParseCharacter("Penguin"); !ok || c != Penguin {
		t.Fatalf("got %q %v", c, ok)
	}
	if _, ok := ParseCharacter("cat"); ok {
		t.Fatalf("cat is not a character")
	}
}

func TestNormalizeDiaryEmotion(t *testing.T) {
	cases := map[string]Emotion{
		"happy":        Happy,
		"Calm":         Calm,
		"excited":      Excited,
		"joy":          Happy,
		"melancholy":   Sad,
		"irritated":    Angry,
		"stressed":     Anxious,
		"tranquil":     Calm,
		"thrilled":     Excited,
		"bewildered":   Neutral,
		"":             Neutral,
		" Depressed  ": Sad,
	}
	for in, want := range cases {
		if got := NormalizeDiaryEmotion(in); got != want {
			t.Fatalf("NormalizeDiaryEmotion(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestNormalizeUUID(t *testing.T) {
	if got := NormalizeUUID("  ab-12cd "); got != "AB-12CD" {
		t.Fatalf("got %q", got)
	}
}

func TestRandomCharacter_AlwaysValid(t *testing.T) {
	for i := 0; i < 50; i++ {
		if _, ok := ParseCharacter(string(RandomCharacter())); !ok {
			t.Fatalf("RandomCharacter produced invalid value")
		}
	}
}
