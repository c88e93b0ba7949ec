package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// DefaultPoints is awarded when the model output carries no usable score.
const DefaultPoints = 2

// MaxPoints caps the per-turn award.
const MaxPoints = 5

// Reply is a parsed therapeutic turn.
type Reply struct {
	Text   string
	Points int
	// Structured reports whether the JSON contract was honoured.
	Structured bool
}

// Analysis is the parsed assignment-turn classification.
type Analysis struct {
	Emotion domain.Emotion
	Animal  domain.Character
}

// Diary is a parsed daily summary.
type Diary struct {
	Summary string
	Emotion domain.Emotion
}

var (
	pointsRE = regexp.MustCompile(`(?i)points:\s*(\d+)`)
	pointsAt = regexp.MustCompile(`(?i)points:`)
)

var errNoJSON = errors.New("missing json object")

// extractJSON decodes the outermost {...} span of content into v.
func extractJSON(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), v)
}

func clampPoints(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxPoints {
		return MaxPoints
	}
	return p
}

// ParseReply reads a reply turn. The JSON contract {"reply","points"} wins;
// otherwise the legacy "gpt: ... points: N" text form is scraped. Points are
// always clamped to [0, MaxPoints].
func ParseReply(raw string) Reply {
	var payload struct {
		Reply  string `json:"reply"`
		Points *int   `json:"points"`
	}
	if err := extractJSON(raw, &payload); err == nil && strings.TrimSpace(payload.Reply) != "" && payload.Points != nil {
		return Reply{Text: strings.TrimSpace(payload.Reply), Points: clampPoints(*payload.Points), Structured: true}
	}

	points := DefaultPoints
	if m := pointsRE.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// only digits matched, so this is an overflow
			n = MaxPoints
		}
		points = clampPoints(n)
	}

	text := raw
	if loc := pointsAt.FindStringIndex(raw); loc != nil {
		text = raw[:loc[0]]
	}
	text = strings.TrimSpace(text)
	if len(text) >= 4 && strings.EqualFold(text[:4], "gpt:") {
		text = strings.TrimSpace(text[4:])
	}
	return Reply{Text: text, Points: points}
}

// ParseAnalysis reads an assignment-turn classification. Invalid or missing
// values fall back to neutral / dog.
func ParseAnalysis(raw string) Analysis {
	out := Analysis{Emotion: domain.Neutral, Animal: domain.Dog}

	var payload struct {
		Emotion string `json:"emotion"`
		Animal  string `json:"animal"`
	}
	var emotion, animal string
	if err := extractJSON(raw, &payload); err == nil {
		emotion, animal = payload.Emotion, payload.Animal
	} else {
		// legacy: "emotion: x, animal: y"
		parts := strings.SplitN(strings.ToLower(raw), ",", 2)
		emotion = afterColon(parts[0])
		if len(parts) > 1 {
			animal = afterColon(parts[1])
		}
	}

	if e, ok := domain.ParseEmotion(emotion); ok {
		out.Emotion = e
	}
	if a, ok := domain.ParseCharacter(animal); ok {
		out.Animal = a
	}
	return out
}

func afterColon(s string) string {
	_, v, ok := strings.Cut(s, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// ParseDiary reads a diary summary. It tries the JSON contract, then the
// "diary: ... emotion: ..." markers, then line-based scraping. The raw text
// is used as the summary when nothing else yields one.
func ParseDiary(raw string) Diary {
	var payload struct {
		Diary   string `json:"diary"`
		Emotion string `json:"emotion"`
	}
	if err := extractJSON(raw, &payload); err == nil && strings.TrimSpace(payload.Diary) != "" {
		return Diary{Summary: strings.TrimSpace(payload.Diary), Emotion: domain.NormalizeDiaryEmotion(payload.Emotion)}
	}

	out := Diary{Emotion: domain.Neutral}
	lower := strings.ToLower(raw)
	ds := strings.Index(lower, "diary:")
	es := strings.Index(lower, "emotion:")

	if ds != -1 && es > ds {
		out.Summary = strings.TrimSpace(raw[ds+len("diary:") : es])
		out.Emotion = domain.NormalizeDiaryEmotion(raw[es+len("emotion:"):])
	} else {
		var kept []string
		for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "emotion:") {
				out.Emotion = domain.NormalizeDiaryEmotion(afterColon(line))
				continue
			}
			if strings.TrimSpace(line) != "" {
				kept = append(kept, line)
			}
		}
		out.Summary = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	if out.Summary == "" {
		out.Summary = raw
	}
	return out
}
