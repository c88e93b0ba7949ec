package domain

import (
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Character is the pet archetype bound to a user.
type Character string

const (
	Tiger   Character = "tiger"
	Penguin Character = "penguin"
	Hamster Character = "hamster"
	Pig     Character = "pig"
	Dog     Character = "dog"
)

// Characters lists every valid archetype in a stable order.
var Characters = []Character{Tiger, Penguin, Hamster, Pig, Dog}

// Emotion is a user or pet mood label.
type Emotion string

const (
	Happy   Emotion = "happy"
	Sad     Emotion = "sad"
	Angry   Emotion = "angry"
	Anxious Emotion = "anxious"
	Neutral Emotion = "neutral"

	// Diary-only labels.
	Calm    Emotion = "calm"
	Excited Emotion = "excited"
)

// Emotions lists the moods accepted on chat, character and emotion routes.
var Emotions = []Emotion{Happy, Sad, Angry, Anxious, Neutral}

var diaryEmotions = []Emotion{Happy, Sad, Angry, Anxious, Neutral, Calm, Excited}

var diarySynonyms = map[string]Emotion{
	"joy": Happy, "elated": Happy, "content": Happy,
	"unhappy": Sad, "depressed": Sad, "melancholy": Sad,
	"frustrated": Angry, "irritated": Angry, "mad": Angry,
	"worried": Anxious, "nervous": Anxious, "stressed": Anxious,
	"peaceful": Calm, "relaxed": Calm, "tranquil": Calm,
	"energetic": Excited, "enthusiastic": Excited, "thrilled": Excited,
}

var (
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// fold trims and lower-cases a label.
func fold(s string) string { return lower.String(strings.TrimSpace(s)) }

// NormalizeUUID returns the canonical form of a user key.
func NormalizeUUID(s string) string { return upper.String(strings.TrimSpace(s)) }

// ParseCharacter returns the archetype named by s (case-insensitive).
func ParseCharacter(s string) (Character, bool) {
	c := Character(fold(s))
	for _, v := range Characters {
		if v == c {
			return c, true
		}
	}
	return "", false
}

// ParseEmotion returns the mood named by s (case-insensitive). Only the five
// chat moods are accepted.
func ParseEmotion(s string) (Emotion, bool) {
	e := Emotion(fold(s))
	for _, v := range Emotions {
		if v == e {
			return e, true
		}
	}
	return "", false
}

// CoerceEmotion is ParseEmotion with unknown values mapped to Neutral.
func CoerceEmotion(s string) Emotion {
	if e, ok := ParseEmotion(s); ok {
		return e
	}
	return Neutral
}

// NormalizeDiaryEmotion maps a free-form label onto the diary vocabulary:
// known labels pass through, synonyms are folded, anything else is Neutral.
func NormalizeDiaryEmotion(s string) Emotion {
	e := fold(s)
	for _, v := range diaryEmotions {
		if string(v) == e {
			return v
		}
	}
	if v, ok := diarySynonyms[e]; ok {
		return v
	}
	return Neutral
}

// RandomCharacter picks an archetype uniformly.
func RandomCharacter() Character {
	return Characters[rand.IntN(len(Characters))]
}
