// captioner/probe/probe_test.go
package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	t.Run("extracts duration and first video stream dimensions", func(t *testing.T) {
		data := []byte(`{
			"streams": [
				{"codec_type": "audio", "sample_rate": "48000"},
				{"codec_type": "video", "width": 1920, "height": 1080},
				{"codec_type": "video", "width": 640, "height": 360}
			],
			"format": {"duration": "12.480000"}
		}`)

		info, err := parseProbeOutput(data)
		require.NoError(t, err)
		assert.InDelta(t, 12.48, info.Duration, 1e-9)
		assert.Equal(t, 1920, info.Width)
		assert.Equal(t, 1080, info.Height)
	})

	t.Run("no video stream", func(t *testing.T) {
		data := []byte(`{
			"streams": [{"codec_type": "audio"}],
			"format": {"duration": "5.0"}
		}`)
		_, err := parseProbeOutput(data)
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("missing duration", func(t *testing.T) {
		data := []byte(`{
			"streams": [{"codec_type": "video", "width": 1280, "height": 720}],
			"format": {}
		}`)
		_, err := parseProbeOutput(data)
		assert.ErrorIs(t, err, ErrMissingProperties)
	})

	t.Run("zero dimensions", func(t *testing.T) {
		data := []byte(`{
			"streams": [{"codec_type": "video", "width": 0, "height": 0}],
			"format": {"duration": "5.0"}
		}`)
		_, err := parseProbeOutput(data)
		assert.ErrorIs(t, err, ErrMissingProperties)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseProbeOutput([]byte("not json at all"))
		assert.ErrorIs(t, err, ErrProbeFailed)
	})
}
