package badge

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in, meta, payload string
	}{
		{"data:image/jpeg;base64,AAA", "data:image/jpeg;base64", "AAA"},
		{"AAA", "", "AAA"},
		{"data:x,", "", "data:x,"},
		{"a,b,c", "a", "b,c"},
	}
	for _, tt := range tests {
		meta, payload := Split(tt.in)
		if meta != tt.meta || payload != tt.payload {
			t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.in, meta, payload, tt.meta, tt.payload)
		}
		if got := Payload(tt.in); got != tt.payload {
			t.Errorf("Payload(%q) = %q, want %q", tt.in, got, tt.payload)
		}
	}
}

func TestMIMEType(t *testing.T) {
	if got := MIMEType("data:image/png;base64,AAA"); got != "image/png" {
		t.Errorf("MIMEType = %q", got)
	}
	if got := MIMEType("AAA"); got != "" {
		t.Errorf("MIMEType = %q, want empty", got)
	}
}

func TestFromUpload(t *testing.T) {
	raw := testPNG(t, 4, 4)
	got, err := FromUpload(bytes.NewReader(raw), "image/png", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("data url = %q", got[:30])
	}
	back, err := Decode(got)
	if err != nil || !bytes.Equal(back, raw) {
		t.Errorf("round trip mismatch: %v", err)
	}
}

func TestFromUpload_SniffsMissingType(t *testing.T) {
	got, err := FromUpload(bytes.NewReader(testPNG(t, 2, 2)), "application/octet-stream", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if MIMEType(got) != "image/png" {
		t.Errorf("mime = %q", MIMEType(got))
	}
}

func TestFromUpload_Rejects(t *testing.T) {
	if _, err := FromUpload(strings.NewReader("hello, world"), "text/plain", 0); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("text upload: err = %v", err)
	}
	if _, err := FromUpload(strings.NewReader(""), "image/png", 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty upload: err = %v", err)
	}
	if _, err := FromUpload(bytes.NewReader(testPNG(t, 8, 8)), "image/png", 10); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversize upload: err = %v", err)
	}
}

func TestEncode_ScalesDown(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	encoded, err := Encode(img, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(encoded, "data:image/jpeg;base64,") {
		t.Fatalf("not a jpeg data url")
	}
	raw, _ := Decode(encoded)
	out, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("size = %dx%d, want 50x25", b.Dx(), b.Dy())
	}
}

func TestEncode_Empty(t *testing.T) {
	if _, err := Encode(nil, 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v", err)
	}
	if _, err := Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Camera
// ---------------------------------------------------------------------------

type fakeStream struct {
	frame    image.Image
	frameErr error
	stops    int
}

func (s *fakeStream) Frame(context.Context) (image.Image, error) { return s.frame, s.frameErr }
func (s *fakeStream) Stop() error                                 { s.stops++; return nil }

type fakeCamera struct {
	stream  *fakeStream
	openErr error
}

func (c *fakeCamera) Open(context.Context) (Stream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

func TestCapture_StopsStream(t *testing.T) {
	s := &fakeStream{frame: image.NewRGBA(image.Rect(0, 0, 10, 10))}
	encoded, err := Capture(context.Background(), &fakeCamera{stream: s}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(encoded, "data:image/jpeg;base64,") {
		t.Error("expected jpeg data url")
	}
	if s.stops != 1 {
		t.Errorf("stops = %d, want 1", s.stops)
	}
}

func TestCapture_StopsStreamOnFrameError(t *testing.T) {
	s := &fakeStream{frameErr: errors.New("device busy")}
	if _, err := Capture(context.Background(), &fakeCamera{stream: s}, 0); err == nil {
		t.Fatal("expected error")
	}
	if s.stops != 1 {
		t.Errorf("stops = %d, want 1", s.stops)
	}
}

func TestCapture_OpenFailure(t *testing.T) {
	_, err := Capture(context.Background(), &fakeCamera{openErr: errors.New("permission denied")}, 0)
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("err = %v", err)
	}
	if _, err := Capture(context.Background(), nil, 0); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("nil camera: err = %v", err)
	}
}

func TestWithStream_StopsOnPanic(t *testing.T) {
	s := &fakeStream{}
	func() {
		defer func() { _ = recover() }()
		_ = WithStream(context.Background(), &fakeCamera{stream: s}, func(Stream) error { panic("boom") })
	}()
	if s.stops != 1 {
		t.Errorf("stops = %d, want 1", s.stops)
	}
}

func TestCaptureDialog_CaptureReleases(t *testing.T) {
	s := &fakeStream{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	d, err := OpenDialog(context.Background(), &fakeCamera{stream: s}, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !d.Active() {
		t.Fatal("dialog should hold the stream")
	}
	if _, err := d.Capture(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.Active() || s.stops != 1 {
		t.Errorf("active = %v, stops = %d", d.Active(), s.stops)
	}
	if _, err := d.Capture(context.Background()); !errors.Is(err, ErrDialogClosed) {
		t.Errorf("second capture: err = %v", err)
	}
	if err := d.Close(); err != nil || s.stops != 1 {
		t.Errorf("close after capture: err = %v, stops = %d", err, s.stops)
	}
}

func TestCaptureDialog_Cancel(t *testing.T) {
	s := &fakeStream{}
	d, _ := OpenDialog(context.Background(), &fakeCamera{stream: s}, 0)
	if err := d.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_ = d.Cancel()
	if s.stops != 1 {
		t.Errorf("stops = %d, want 1", s.stops)
	}
}

func TestCaptureDialog_ReleasesOnFrameError(t *testing.T) {
	s := &fakeStream{frameErr: errors.New("lost")}
	d, _ := OpenDialog(context.Background(), &fakeCamera{stream: s}, 0)
	if _, err := d.Capture(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if d.Active() || s.stops != 1 {
		t.Errorf("active = %v, stops = %d", d.Active(), s.stops)
	}
}

func TestFrameCamera(t *testing.T) {
	encoded, err := Capture(context.Background(), FrameCamera{Data: testPNG(t, 20, 10)}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if MIMEType(encoded) != "image/jpeg" {
		t.Errorf("mime = %q", MIMEType(encoded))
	}
	if _, err := Capture(context.Background(), FrameCamera{Data: []byte("nope")}, 0); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("garbage frame: err = %v", err)
	}
}
