package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeResult carries the source attributes the pipeline needs.
type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
}

// Prober wraps ffprobe.
type Prober struct {
	ffprobePath string
	runner      Runner
}

func NewProber(ffprobePath string, runner Runner) *Prober {
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the input file. Any failure here is fatal to the pipeline;
// no output is written before a successful probe.
func (p *Prober) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	out, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", inputPath, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	result := &ProbeResult{}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec == "" {
				result.VideoCodec = s.CodecName
				result.Width = s.Width
				result.Height = s.Height
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		}
	}

	if parsed.Format.Duration != "" {
		d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse probe duration %q: %w", parsed.Format.Duration, err)
		}
		result.Duration = d
	}

	if result.Duration <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("probe %s: no usable video stream", inputPath)
	}
	return result, nil
}
