package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	frameWidth  = 1080
	frameHeight = 1920
	titleWrap   = 25
	titleTop    = 50
	titleStep   = 70
	defaultFont = "fonts/DejaVuSans.ttf"
	defaultSize = 50.0
	fontDPI     = 72
)

// FrameRenderer draws vertical video frames with the title overlaid.
type FrameRenderer struct {
	face    font.Face
	fontErr error
}

// NewFrameRenderer loads the TrueType font at fontPath; a load failure is reported by every Render.
func NewFrameRenderer(fontPath string, size float64) *FrameRenderer {
	if fontPath == "" {
		fontPath = defaultFont
	}
	if size <= 0 {
		size = defaultSize
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		return &FrameRenderer{fontErr: fmt.Errorf("load font: %w", err)}
	}
	return newFrameRendererFromBytes(data, size)
}

func newFrameRendererFromBytes(data []byte, size float64) *FrameRenderer {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return &FrameRenderer{fontErr: fmt.Errorf("parse font: %w", err)}
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: fontDPI, Hinting: font.HintingFull})
	if err != nil {
		return &FrameRenderer{fontErr: fmt.Errorf("font face: %w", err)}
	}
	return &FrameRenderer{face: face}
}

// Render writes a PNG frame to dest. A missing source image yields a black canvas.
func (r *FrameRenderer) Render(srcPath, title, dest string) error {
	if r.fontErr != nil {
		return r.fontErr
	}

	canvas := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	src, err := loadImage(srcPath)
	if err != nil {
		return err
	}
	if src != nil {
		placeScaled(canvas, src)
	}

	r.drawTitle(canvas, strings.ToUpper(title))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := png.Encode(out, canvas); err != nil {
		out.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	return out.Close()
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// placeScaled fits src to the frame width, keeping its aspect ratio, and centres it vertically.
func placeScaled(canvas *image.RGBA, src image.Image) {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	height := b.Dy() * frameWidth / b.Dx()
	top := (frameHeight - height) / 2
	target := image.Rect(0, top, frameWidth, top+height)
	xdraw.CatmullRom.Scale(canvas, target, src, b, xdraw.Over, nil)
}

func (r *FrameRenderer) drawTitle(canvas *image.RGBA, title string) {
	drawer := &font.Drawer{Dst: canvas, Src: image.White, Face: r.face}
	ascent := r.face.Metrics().Ascent

	y := titleTop
	for _, line := range wrapText(title, titleWrap) {
		width := drawer.MeasureString(line)
		x := (fixed.I(frameWidth) - width) / 2
		drawer.Dot = fixed.Point26_6{X: x, Y: fixed.I(y) + ascent}
		drawer.DrawString(line)
		y += titleStep
	}
}
