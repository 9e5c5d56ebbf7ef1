// captioner/subtitle/srt.go
package subtitle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatSRT renders cues as SubRip text: index line, time-range line,
// text line, blank separator. ffmpeg's subtitles filter consumes this directly.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			cue.Index, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// formatTimestamp renders seconds as the SRT "HH:MM:SS,mmm" form.
func formatTimestamp(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// parseTimestamp is the inverse of formatTimestamp, used to verify round-trips.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.SplitN(strings.Replace(ts, ",", ".", 1), ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	return float64(h)*3600 + float64(m)*60 + s, nil
}
