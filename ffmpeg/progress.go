// captioner/ffmpeg/progress.go
package ffmpeg

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strconv"
)

// ffmpeg reports progress on stderr as "time=HH:MM:SS.ss" markers.
var timePattern = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// scanProgress reads the diagnostic stream to completion, converting each
// elapsed-time marker into a percentage of the processing window. ffmpeg
// rewrites its status line with carriage returns, so the scanner splits on
// both \r and \n.
func scanProgress(r io.Reader, window float64, fn func(percent float64)) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanStatusLines)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if fn == nil || window <= 0 {
			continue
		}
		m := timePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.ParseFloat(m[3], 64)
		elapsed := float64(h)*3600 + float64(min)*60 + sec

		percent := elapsed / window * 100
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		fn(percent)
	}

	// A pathological line can exceed the scanner's token limit and abort the
	// scan early. The pipe must still be drained to completion, or the
	// subprocess blocks on a full stderr buffer until its deadline.
	if scanner.Err() != nil {
		io.Copy(io.Discard, r)
	}
}

func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
