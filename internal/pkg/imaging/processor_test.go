package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_DownscalesToJPEG(t *testing.T) {
	p := NewProcessor(Config{MaxWidth: 100, MaxHeight: 100})
	res, err := p.Normalize(pngBytes(t, 400, 200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %s", res.ContentType)
	}
	if res.Width != 100 || res.Height != 50 {
		t.Fatalf("unexpected size: %dx%d", res.Width, res.Height)
	}
	if _, err := jpeg.Decode(bytes.NewReader(res.Data)); err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
}

func TestNormalize_KeepsSmallImageSize(t *testing.T) {
	p := NewProcessor(Config{})
	res, err := p.Normalize(pngBytes(t, 40, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Fatalf("unexpected size: %dx%d", res.Width, res.Height)
	}
}

func TestNormalize_RejectsGarbage(t *testing.T) {
	if _, err := NewProcessor(DefaultConfig()).Normalize([]byte("not an image")); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/png") || IsImage("application/pdf") {
		t.Fatal("unexpected IsImage result")
	}
}
