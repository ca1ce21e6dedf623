package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/logging"
)

type fakeSpeech struct {
	text string
	err  error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string, out io.Writer) error {
	f.text = text
	if f.err != nil {
		return f.err
	}
	_, err := out.Write([]byte("RIFF"))
	return err
}

type fakeEncoder struct {
	frames  []string
	bad     bool
	existed []bool
}

func (f *fakeEncoder) Duration(context.Context, string) (float64, error) { return 12, nil }

func (f *fakeEncoder) Encode(_ context.Context, frames []string, audio string, duration float64, listPath, outPath string) error {
	f.frames = append([]string(nil), frames...)
	for _, p := range append([]string{audio}, frames...) {
		_, err := os.Stat(p)
		f.existed = append(f.existed, err == nil)
	}
	if f.bad {
		return errors.New("ffmpeg exited 1")
	}
	if err := writeConcatList(listPath, frames, duration); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

func newTestSynthesizer(t *testing.T, speech *fakeSpeech, enc *fakeEncoder) (*Synthesizer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.MediaConfig{TmpDir: filepath.Join(dir, "tmp"), OutputDir: filepath.Join(dir, "shorts")}
	frames := newFrameRendererFromBytes(goregular.TTF, 50)
	return newSynthesizer(cfg, speech, frames, enc, logging.Discard()), dir
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func assertNoIntermediates(t *testing.T, tmpDir string) {
	t.Helper()
	entries, err := os.ReadDir(tmpDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read tmp dir: %v", err)
	}
	for _, e := range entries {
		t.Fatalf("unexpected leftover intermediate: %s", e.Name())
	}
}

func TestSynthesizeWithoutImagesRendersOneFrame(t *testing.T) {
	t.Parallel()

	speech := &fakeSpeech{}
	enc := &fakeEncoder{}
	synth, dir := newTestSynthesizer(t, speech, enc)

	path, ok := synth.Synthesize(context.Background(), "AB12345", "Биткоин падает", "Биткоин падает\nТрейдеры ждут ФРС.", nil, domain.CategoryDefault)
	if !ok {
		t.Fatalf("expected a video")
	}
	if path != filepath.Join(dir, "shorts", "AB12345_shorts.mp4") {
		t.Fatalf("unexpected path: %s", path)
	}
	if len(enc.frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(enc.frames))
	}
	for i, existed := range enc.existed {
		if !existed {
			t.Fatalf("input %d missing at encode time", i)
		}
	}
	if speech.text != "Трейдеры ждут ФРС." {
		t.Fatalf("narration must skip the title line, got %q", speech.text)
	}
	assertNoIntermediates(t, filepath.Join(dir, "tmp"))
}

func TestSynthesizeRendersFramePerImage(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	synth, dir := newTestSynthesizer(t, &fakeSpeech{}, enc)

	wide := filepath.Join(dir, "wide.png")
	tall := filepath.Join(dir, "tall.png")
	broken := filepath.Join(dir, "broken.png")
	writePNG(t, wide, 64, 32)
	writePNG(t, tall, 20, 80)
	if err := os.WriteFile(broken, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write broken: %v", err)
	}

	_, ok := synth.Synthesize(context.Background(), "AB12345", "Title", "Title\nBody", []string{wide, broken, tall}, domain.CategoryFashion)
	if !ok {
		t.Fatalf("expected a video")
	}
	if len(enc.frames) != 2 {
		t.Fatalf("broken image must be skipped, got %d frames", len(enc.frames))
	}
	for i, frame := range enc.frames {
		if !strings.Contains(filepath.Base(frame), "AB12345_background_") {
			t.Fatalf("frame %d has unexpected name %s", i, frame)
		}
	}
	assertNoIntermediates(t, filepath.Join(dir, "tmp"))
}

func TestSynthesizeFailuresAreAbsent(t *testing.T) {
	t.Parallel()

	t.Run("speech", func(t *testing.T) {
		synth, dir := newTestSynthesizer(t, &fakeSpeech{err: errors.New("unavailable")}, &fakeEncoder{})
		if _, ok := synth.Synthesize(context.Background(), "AB12345", "T", "T\nB", nil, domain.CategoryDefault); ok {
			t.Fatalf("expected absent result")
		}
		assertNoIntermediates(t, filepath.Join(dir, "tmp"))
	})

	t.Run("encoder", func(t *testing.T) {
		synth, dir := newTestSynthesizer(t, &fakeSpeech{}, &fakeEncoder{bad: true})
		if _, ok := synth.Synthesize(context.Background(), "AB12345", "T", "T\nB", nil, domain.CategoryDefault); ok {
			t.Fatalf("expected absent result")
		}
		assertNoIntermediates(t, filepath.Join(dir, "tmp"))
	})

	t.Run("font", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.MediaConfig{TmpDir: filepath.Join(dir, "tmp"), OutputDir: filepath.Join(dir, "shorts"), FontPath: filepath.Join(dir, "missing.ttf")}
		synth := NewSynthesizer(cfg, &fakeSpeech{}, logging.Discard())
		if _, ok := synth.Synthesize(context.Background(), "AB12345", "T", "T\nB", nil, domain.CategoryDefault); ok {
			t.Fatalf("expected absent result without a font")
		}
	})
}

func TestFrameRendererOutputSize(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "frame.png")
	r := newFrameRendererFromBytes(goregular.TTF, 50)
	if err := r.Render("", "a very long title that needs wrapping across lines", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open frame: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if cfg.Width != 1080 || cfg.Height != 1920 {
		t.Fatalf("unexpected frame size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSafeIDAndNarration(t *testing.T) {
	t.Parallel()

	if got := safeID("-100-200"); got != "100_200" {
		t.Fatalf("unexpected safe id: %s", got)
	}
	if got := safeID("AB12345"); got != "AB12345" {
		t.Fatalf("unexpected safe id: %s", got)
	}
	if got := narration("single line"); got != "single line" {
		t.Fatalf("unexpected narration: %s", got)
	}
}

func TestWriteConcatList(t *testing.T) {
	t.Parallel()

	list := filepath.Join(t.TempDir(), "list.txt")
	if err := writeConcatList(list, []string{"/a.png", "/b.png"}, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(list)
	content := string(data)
	if strings.Count(content, "duration 5.000") != 2 {
		t.Fatalf("expected equal durations, got:\n%s", content)
	}
	if !strings.HasSuffix(content, "file '/b.png'\n") {
		t.Fatalf("last frame must be repeated, got:\n%s", content)
	}
}
