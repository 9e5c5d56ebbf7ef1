// captioner/subtitle/reconcile.go
package subtitle

type Policy string

const (
	// PolicyPad appends a blank clip after the video so every cue is covered.
	PolicyPad Policy = "pad"
	// PolicyTruncate encodes only the window both the script and video cover.
	PolicyTruncate Policy = "truncate"
)

// Plan is the reconciled processing window for one job: which policy applies,
// how long the encode runs, how much blank padding (pad policy only), and the
// cue sequence fitted to that window.
type Plan struct {
	Policy      Policy
	Window      float64 // effective processing window, seconds
	PadDuration float64 // blank-clip length appended under PolicyPad, else 0
	Width       int
	Height      int
	Cues        []Cue
}

// Reconcile decides how mismatched script and video durations are resolved.
// A script longer than the video pads the video with blank frames; otherwise
// processing is truncated to the overlap and cues are fitted to it. Cues whose
// start falls at or past the window are dropped, and the last kept cue's end
// is clamped to the window boundary. Re-running on already fitted cues with
// the same window changes nothing.
func Reconcile(cues []Cue, videoDuration float64, width, height int) Plan {
	scriptDuration := TotalDuration(cues)

	plan := Plan{
		Width:  width,
		Height: height,
	}

	if scriptDuration > videoDuration {
		plan.Policy = PolicyPad
		plan.Window = scriptDuration
		plan.PadDuration = scriptDuration - videoDuration
	} else {
		plan.Policy = PolicyTruncate
		plan.Window = minFloat(videoDuration, scriptDuration)
	}

	plan.Cues = fitCues(cues, plan.Window)
	return plan
}

// fitCues drops cues starting at or beyond the window and clamps the final
// kept cue to end at the window boundary.
func fitCues(cues []Cue, window float64) []Cue {
	fitted := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		if cue.Start >= window {
			break
		}
		if cue.End > window {
			cue.End = window
		}
		fitted = append(fitted, cue)
	}
	return fitted
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
