package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Encoder measures narration and muxes frames with it into an mp4.
type Encoder interface {
	Duration(ctx context.Context, audioPath string) (float64, error)
	Encode(ctx context.Context, frames []string, audioPath string, duration float64, listPath, outPath string) error
}

// FFmpegEncoder drives the ffmpeg binary through ffmpeg-go.
type FFmpegEncoder struct {
	bin string
}

var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder uses bin, or "ffmpeg" from PATH when empty.
func NewFFmpegEncoder(bin string) *FFmpegEncoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegEncoder{bin: bin}
}

const defaultProbeTimeout = 30 * time.Second

// Duration returns the length of the audio file in seconds. ffprobe is
// resolved from PATH; the ffmpeg-go probe helpers do not take a binary path.
func (e *FFmpegEncoder) Duration(ctx context.Context, audioPath string) (float64, error) {
	timeout, err := probeTimeout(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", audioPath, err)
	}
	raw, err := ffmpeg.ProbeWithTimeout(audioPath, timeout, ffmpeg.KwArgs{"v": "error"})
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", audioPath, err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return 0, fmt.Errorf("decode probe: %w", err)
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return seconds, nil
}

// probeTimeout bounds ffprobe by the context deadline.
func probeTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultProbeTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}

// Encode shows every frame for an equal share of duration over the audio track.
func (e *FFmpegEncoder) Encode(ctx context.Context, frames []string, audioPath string, duration float64, listPath, outPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("encode: no frames")
	}
	if err := writeConcatList(listPath, frames, duration); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	video := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).Video()
	audio := ffmpeg.Input(audioPath).Audio()
	args := ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outPath, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"c:a":      "aac",
		"r":        30,
		"pix_fmt":  "yuv420p",
		"shortest": "",
	}).OverWriteOutput().GetArgs()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// writeConcatList renders an ffmpeg concat demuxer script. The last frame is repeated so its duration is honoured.
func writeConcatList(path string, frames []string, duration float64) error {
	per := duration
	if len(frames) > 1 {
		per = duration / float64(len(frames))
	}

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, frame := range frames {
		abs, err := filepath.Abs(frame)
		if err != nil {
			return fmt.Errorf("resolve frame: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\nduration %.3f\n", escapeConcat(abs), per)
	}
	last, _ := filepath.Abs(frames[len(frames)-1])
	fmt.Fprintf(&b, "file '%s'\n", escapeConcat(last))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create list dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

func escapeConcat(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
