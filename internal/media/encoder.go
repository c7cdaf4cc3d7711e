package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Encoder wraps ffmpeg segmented encoding. Each invocation produces one
// quality tier as fixed-duration MPEG-TS segments with keyframes forced at
// segment boundaries, so every chunk decodes without its neighbors.
type Encoder struct {
	ffmpegPath string
	runner     Runner
}

func NewEncoder(ffmpegPath string, runner Runner) *Encoder {
	return &Encoder{ffmpegPath: ffmpegPath, runner: runner}
}

// EncodeTier encodes one tier into outDir. Segments are written through
// ffmpeg's temp_file flag (write-then-rename), so a concurrent reader never
// observes a partially written chunk. onProgress receives 0-100 within this
// tier.
func (e *Encoder) EncodeTier(ctx context.Context, inputPath, outDir string, tier Tier, chunkDuration int, duration float64, onProgress func(float64)) error {
	keyframeExpr := fmt.Sprintf("expr:gte(t,n_forced*%d)", chunkDuration)

	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", tier.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-b:v", tier.VideoBitrate,
		"-maxrate", tier.MaxRate,
		"-bufsize", tier.BufSize,
		"-c:a", "aac",
		"-b:a", tier.AudioBitrate,
		"-force_key_frames", keyframeExpr,
		"-sc_threshold", "0",
		"-f", "hls",
		"-hls_time", strconv.Itoa(chunkDuration),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_flags", "temp_file+independent_segments",
		"-hls_segment_filename", filepath.Join(outDir, "chunk_%06d.ts"),
		"-progress", "pipe:1",
		"-nostats",
		"-loglevel", "error",
		filepath.Join(outDir, "index.m3u8"),
	}

	onLine := func(line string) {
		if onProgress == nil || duration <= 0 {
			return
		}
		if us, ok := parseOutTime(line); ok {
			pct := float64(us) / 1e6 / duration * 100
			if pct > 100 {
				pct = 100
			}
			onProgress(pct)
		}
		if line == "progress=end" {
			onProgress(100)
		}
	}

	if err := e.runner.RunLines(ctx, onLine, e.ffmpegPath, args...); err != nil {
		return fmt.Errorf("encode %s: %w", tier.Name, err)
	}
	return nil
}

// parseOutTime extracts microseconds from ffmpeg -progress key=value lines.
// out_time_ms is microseconds despite its name; out_time_us is explicit.
func parseOutTime(line string) (int64, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return 0, false
	}
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us, true
}
