// captioner/subtitle/srt_test.go
package subtitle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSRT(t *testing.T) {
	cues := []Cue{
		{Index: 1, Text: "Hello world", Start: 0, End: 3.6},
		{Index: 2, Text: "This is a test", Start: 3.6, End: 7.8},
	}

	expected := "1\n" +
		"00:00:00,000 --> 00:00:03,600\n" +
		"Hello world\n" +
		"\n" +
		"2\n" +
		"00:00:03,600 --> 00:00:07,800\n" +
		"This is a test\n"

	assert.Equal(t, expected, FormatSRT(cues))
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:         "00:00:00,000",
		3.6:       "00:00:03,600",
		59.999:    "00:00:59,999",
		61.5:      "00:01:01,500",
		3661.042:  "01:01:01,042",
		7325.0015: "02:02:05,002", // rounded to nearest millisecond
	}
	for seconds, want := range cases {
		assert.Equal(t, want, formatTimestamp(seconds), "seconds=%v", seconds)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	cues, err := Parse("Hello world\nThis is a test\nAnd one more line for good measure", DefaultOptions())
	require.NoError(t, err)

	// Re-parse every time range out of the serialized form and check the
	// original start/end survive to millisecond precision.
	for _, block := range strings.Split(strings.TrimSpace(FormatSRT(cues)), "\n\n") {
		lines := strings.Split(block, "\n")
		require.Len(t, lines, 3)

		parts := strings.Split(lines[1], " --> ")
		require.Len(t, parts, 2)

		start, err := parseTimestamp(parts[0])
		require.NoError(t, err)
		end, err := parseTimestamp(parts[1])
		require.NoError(t, err)

		idx := -1
		for i, c := range cues {
			if c.Text == lines[2] {
				idx = i
			}
		}
		require.GreaterOrEqual(t, idx, 0)
		assert.InDelta(t, cues[idx].Start, start, 0.0005)
		assert.InDelta(t, cues[idx].End, end, 0.0005)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, ts := range []string{"", "12:34", "aa:bb:cc,ddd", "1:2"} {
		_, err := parseTimestamp(ts)
		assert.Error(t, err, "timestamp %q", ts)
	}
}
