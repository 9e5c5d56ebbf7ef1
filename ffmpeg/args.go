// captioner/ffmpeg/args.go
package ffmpeg

import (
	"fmt"
	"strings"

	"captioner/subtitle"
)

// Command is an explicit subprocess invocation: a program and its ordered
// argument list. Arguments are never joined through a shell.
type Command struct {
	Program string
	Args    []string
}

func (c Command) String() string {
	return c.Program + " " + strings.Join(c.Args, " ")
}

// paletteCommand builds the first preview pass: extract a custom color
// palette from the opening seconds of the video. A dedicated palette gives a
// much better looking GIF at this frame rate and scale than a one-pass encode.
func paletteCommand(bin, videoPath, palettePath string, duration float64, extra []string) Command {
	args := []string{
		"-y",
		"-t", formatSeconds(duration),
		"-i", videoPath,
		"-vf", "fps=10,scale=320:-1:flags=lanczos,palettegen",
	}
	args = append(args, extra...)
	args = append(args, palettePath)
	return Command{Program: bin, Args: args}
}

// previewCommand builds the second preview pass: encode the GIF using the
// palette produced by paletteCommand.
func previewCommand(bin, videoPath, palettePath, outputPath string, duration float64, extra []string) Command {
	args := []string{
		"-y",
		"-t", formatSeconds(duration),
		"-i", videoPath,
		"-i", palettePath,
		"-filter_complex", "fps=10,scale=320:-1:flags=lanczos[x];[x][1:v]paletteuse",
	}
	args = append(args, extra...)
	args = append(args, outputPath)
	return Command{Program: bin, Args: args}
}

// encodeCommand builds the final captioned encode over exactly the reconciled
// processing window. Under the pad policy a black lavfi clip is concatenated
// after the source before subtitles are burned in, so cues past the end of
// the video still render.
func encodeCommand(bin, fontName string, req EncodeRequest, extra []string) Command {
	style := forceStyle(req.Options, fontName)
	subFilter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(req.SubtitlePath), style)

	args := []string{"-y", "-i", req.VideoPath}

	if req.Plan.Policy == subtitle.PolicyPad {
		pad := fmt.Sprintf("color=c=black:s=%dx%d:d=%s:r=25",
			req.Plan.Width, req.Plan.Height, formatSeconds(req.Plan.PadDuration))
		graph := fmt.Sprintf("[0:v][1:v]concat=n=2:v=1:a=0[cat];[cat]%s[outv]", subFilter)
		args = append(args,
			"-f", "lavfi",
			"-i", pad,
			"-filter_complex", graph,
			"-map", "[outv]",
			"-map", "0:a?",
		)
	} else {
		args = append(args, "-vf", subFilter)
	}

	args = append(args,
		"-t", formatSeconds(req.Plan.Window),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
	)
	args = append(args, extra...)
	args = append(args, req.OutputPath)
	return Command{Program: bin, Args: args}
}

// forceStyle renders Options as an ASS force_style expression for the
// subtitles filter.
func forceStyle(opts subtitle.Options, fontName string) string {
	bold := 0
	if opts.FontWeight == subtitle.WeightBold {
		bold = 1
	}
	return fmt.Sprintf("FontName=%s,FontSize=%d,PrimaryColour=%s,Bold=%d,Alignment=%d",
		fontName, opts.FontSize, assColor(opts.FontColor), bold, assAlignment(opts.Position))
}

// assColor converts a web "#RRGGBB" color to libass's &HAABBGGRR form:
// channel order reversed, alpha forced to fully opaque.
func assColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "&H00FFFFFF"
	}
	r, g, b := hex[0:2], hex[2:4], hex[4:6]
	return "&H00" + strings.ToUpper(b+g+r)
}

// assAlignment maps a caption position onto the ASS numpad alignment codes.
func assAlignment(pos subtitle.Position) int {
	switch pos {
	case subtitle.PositionTop:
		return 8 // top-center
	case subtitle.PositionCenter:
		return 5 // middle-center
	default:
		return 2 // bottom-center
	}
}

// escapeFilterPath escapes a file path for use inside a filter expression,
// where backslashes, colons and quotes are metacharacters.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	return p
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
