package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
)

type frameRenderer interface {
	Render(srcPath, title, dest string) error
}

// Synthesizer turns a title, narration and photos into a vertical short.
type Synthesizer struct {
	speech    ports.SpeechSynthesizer
	frames    frameRenderer
	encoder   Encoder
	tmpDir    string
	outputDir string
	logger    *slog.Logger
}

var _ ports.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer wires the speech client with the x/image frame renderer and ffmpeg.
func NewSynthesizer(cfg config.MediaConfig, speech ports.SpeechSynthesizer, logger *slog.Logger) *Synthesizer {
	return newSynthesizer(cfg, speech, NewFrameRenderer(cfg.FontPath, cfg.FontSize), NewFFmpegEncoder(cfg.FFmpegBin), logger)
}

func newSynthesizer(cfg config.MediaConfig, speech ports.SpeechSynthesizer, frames frameRenderer, encoder Encoder, logger *slog.Logger) *Synthesizer {
	tmp := cfg.TmpDir
	if tmp == "" {
		tmp = "tmp"
	}
	out := cfg.OutputDir
	if out == "" {
		out = "shorts"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Synthesizer{speech: speech, frames: frames, encoder: encoder, tmpDir: tmp, outputDir: out, logger: logger}
}

// Synthesize returns the path of the encoded video, or false when nothing could be produced.
func (s *Synthesizer) Synthesize(ctx context.Context, id, title, text string, imagePaths []string, category domain.Category) (path string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("shorts synthesis panicked", "id", id, "panic", r)
			path, ok = "", false
		}
	}()

	safe := safeID(id)
	token := uuid.NewString()[:8]
	log := s.logger.With("id", safe, "category", string(category))

	var intermediates []string
	defer func() {
		for _, p := range intermediates {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Warn("remove intermediate", "path", p, "error", err)
			}
		}
	}()

	audioPath := filepath.Join(s.tmpDir, fmt.Sprintf("%s_speech_%s.wav", safe, token))
	intermediates = append(intermediates, audioPath)
	if err := s.writeSpeech(ctx, narration(text), audioPath); err != nil {
		log.Error("speech synthesis failed", "error", err)
		return "", false
	}

	sources := imagePaths
	if len(sources) == 0 {
		log.Warn("no images, rendering blank background")
		sources = []string{""}
	}

	var frames []string
	for idx, src := range sources {
		dest := filepath.Join(s.tmpDir, fmt.Sprintf("%s_background_%d_%s.png", safe, idx, token))
		if err := s.frames.Render(src, title, dest); err != nil {
			log.Warn("frame render failed", "index", idx, "source", src, "error", err)
			continue
		}
		intermediates = append(intermediates, dest)
		frames = append(frames, dest)
	}
	if len(frames) == 0 {
		log.Error("no frames rendered")
		return "", false
	}

	duration, err := s.encoder.Duration(ctx, audioPath)
	if err != nil {
		log.Error("measure narration", "error", err)
		return "", false
	}

	listPath := filepath.Join(s.tmpDir, fmt.Sprintf("%s_frames_%s.txt", safe, token))
	intermediates = append(intermediates, listPath)
	outPath := filepath.Join(s.outputDir, safe+"_shorts.mp4")
	if err := s.encoder.Encode(ctx, frames, audioPath, duration, listPath, outPath); err != nil {
		log.Error("encode shorts", "error", err)
		_ = os.Remove(outPath)
		return "", false
	}

	log.Info("shorts encoded", "path", outPath, "frames", len(frames), "duration", duration)
	return outPath, true
}

func (s *Synthesizer) writeSpeech(ctx context.Context, text, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create tmp dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create audio: %w", err)
	}
	if err := s.speech.Synthesize(ctx, text, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// narration drops the title line; a single-line text is read whole.
func narration(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}

// safeID keeps file names flag-safe for ids that start with a dash.
func safeID(id string) string {
	if strings.HasPrefix(id, "-") {
		return strings.ReplaceAll(strings.TrimLeft(id, "-"), "-", "_")
	}
	return id
}
