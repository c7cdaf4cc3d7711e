package media

import (
	"context"
	"fmt"
	"strconv"
)

// Thumbnailer extracts a single still frame with ffmpeg.
type Thumbnailer struct {
	ffmpegPath string
	runner     Runner
}

func NewThumbnailer(ffmpegPath string, runner Runner) *Thumbnailer {
	return &Thumbnailer{ffmpegPath: ffmpegPath, runner: runner}
}

// Generate writes a JPEG frame taken at the given offset.
func (t *Thumbnailer) Generate(ctx context.Context, inputPath, outPath string, atSeconds float64) error {
	if atSeconds < 0 {
		atSeconds = 0
	}
	out, err := t.runner.Run(ctx, t.ffmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 2, 64),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=640:-2",
		"-q:v", "2",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("thumbnail: %w: %s", err, tail(out, 256))
	}
	return nil
}
