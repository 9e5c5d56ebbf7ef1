// captioner/subtitle/subtitle.go
package subtitle

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyScript is returned when a script has no usable lines after trimming.
var ErrEmptyScript = errors.New("script contains no non-blank lines")

// Cue is a single timed subtitle entry. Cues tile the timeline back to back:
// each cue starts exactly where the previous one ended.
type Cue struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (c Cue) Duration() float64 { return c.End - c.Start }

type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

// Options controls cue timing and caption rendering style.
type Options struct {
	BaseDuration float64    `json:"baseDuration"` // seconds per line regardless of length
	PerWord      float64    `json:"perWord"`      // additional seconds per word
	FontColor    string     `json:"fontColor"`    // "#RRGGBB"
	FontWeight   FontWeight `json:"fontWeight"`
	FontSize     int        `json:"fontSize"`
	Position     Position   `json:"position"`
}

func DefaultOptions() Options {
	return Options{
		BaseDuration: 3,
		PerWord:      0.3,
		FontColor:    "#EC4899",
		FontWeight:   WeightBold,
		FontSize:     24,
		Position:     PositionBottom,
	}
}

var hexColorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// ParseOptions maps raw client key/value input onto a fully validated Options.
// Out-of-range or malformed values are clamped or defaulted, never rejected:
// a bad style field must not fail a whole processing job.
func ParseOptions(raw map[string]string) Options {
	opts := DefaultOptions()

	if v, err := strconv.ParseFloat(raw["baseDuration"], 64); err == nil {
		opts.BaseDuration = clampFloat(v, 0.1, 10)
	}
	if v, err := strconv.ParseFloat(raw["perWord"], 64); err == nil {
		opts.PerWord = clampFloat(v, 0.1, 2)
	}
	if v, err := strconv.Atoi(raw["fontSize"]); err == nil {
		opts.FontSize = clampInt(v, 12, 48)
	}
	if c := strings.TrimSpace(raw["fontColor"]); hexColorPattern.MatchString(c) {
		if !strings.HasPrefix(c, "#") {
			c = "#" + c
		}
		opts.FontColor = strings.ToUpper(c)
	}
	switch FontWeight(strings.ToLower(raw["fontWeight"])) {
	case WeightNormal, WeightBold:
		opts.FontWeight = FontWeight(strings.ToLower(raw["fontWeight"]))
	}
	switch Position(strings.ToLower(raw["position"])) {
	case PositionTop, PositionCenter, PositionBottom:
		opts.Position = Position(strings.ToLower(raw["position"]))
	}

	return opts
}

// Parse converts raw script text into gapless timed cues. Each non-blank line
// becomes one cue lasting BaseDuration plus PerWord seconds per word, laid out
// back to back from time zero.
func Parse(script string, opts Options) ([]Cue, error) {
	var cues []Cue
	cursor := 0.0

	for _, line := range strings.Split(script, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		words := len(strings.Fields(text))
		duration := opts.BaseDuration + float64(words)*opts.PerWord

		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Text:  text,
			Start: cursor,
			End:   cursor + duration,
		})
		cursor += duration
	}

	if len(cues) == 0 {
		return nil, ErrEmptyScript
	}
	return cues, nil
}

// TotalDuration is the end of the last cue, i.e. the script-derived duration.
func TotalDuration(cues []Cue) float64 {
	if len(cues) == 0 {
		return 0
	}
	return cues[len(cues)-1].End
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
