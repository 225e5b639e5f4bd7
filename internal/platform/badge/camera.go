package badge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrDialogClosed      = errors.New("capture dialog is closed")
)

// Camera acquires a video stream from a capture device.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open device stream. Stop releases the device and must be
// safe to call more than once.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Stop() error
}

// WithStream opens a stream, hands it to fn and stops it on every return
// path, including panics in fn.
func WithStream(ctx context.Context, cam Camera, fn func(Stream) error) (err error) {
	if cam == nil {
		return ErrCameraUnavailable
	}
	s, err := cam.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	defer func() {
		if stopErr := s.Stop(); err == nil && stopErr != nil {
			err = fmt.Errorf("stopping camera: %w", stopErr)
		}
	}()
	return fn(s)
}

// Capture grabs a single frame and encodes it as a badge picture. The stream
// is released before Capture returns.
func Capture(ctx context.Context, cam Camera, maxSide int) (string, error) {
	var encoded string
	err := WithStream(ctx, cam, func(s Stream) error {
		frame, err := s.Frame(ctx)
		if err != nil {
			return fmt.Errorf("capturing frame: %w", err)
		}
		encoded, err = Encode(frame, maxSide)
		return err
	})
	if err != nil {
		return "", err
	}
	return encoded, nil
}

// CaptureDialog models the "take a picture" dialog: the stream is acquired
// when the dialog opens and released by whichever of Capture, Cancel or
// Close ends it first.
type CaptureDialog struct {
	mu      sync.Mutex
	stream  Stream
	maxSide int
}

// OpenDialog acquires the camera stream.
func OpenDialog(ctx context.Context, cam Camera, maxSide int) (*CaptureDialog, error) {
	if cam == nil {
		return nil, ErrCameraUnavailable
	}
	s, err := cam.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	return &CaptureDialog{stream: s, maxSide: maxSide}, nil
}

// Active reports whether the dialog still holds the stream.
func (d *CaptureDialog) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

// Capture takes one frame, releases the stream and closes the dialog. The
// stream is released even when the frame cannot be read or encoded.
func (d *CaptureDialog) Capture(ctx context.Context) (encoded string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return "", ErrDialogClosed
	}
	defer func() {
		if relErr := d.release(); err == nil && relErr != nil {
			err = relErr
		}
	}()

	frame, err := d.stream.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("capturing frame: %w", err)
	}
	return Encode(frame, d.maxSide)
}

// Cancel dismisses the dialog without a picture.
func (d *CaptureDialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.release()
}

// Close releases the stream if the dialog is still open. It is meant for
// deferred teardown and is a no-op after Capture or Cancel.
func (d *CaptureDialog) Close() error {
	return d.Cancel()
}

func (d *CaptureDialog) release() error {
	if d.stream == nil {
		return nil
	}
	s := d.stream
	d.stream = nil
	if err := s.Stop(); err != nil {
		return fmt.Errorf("stopping camera: %w", err)
	}
	return nil
}

// FrameCamera is a Camera backed by a single frame captured elsewhere, such
// as a browser snapshot posted to the server. Opening it decodes the frame.
type FrameCamera struct {
	Data []byte
}

// Open implements Camera.
func (c FrameCamera) Open(_ context.Context) (Stream, error) {
	img, err := DecodeFrame(c.Data)
	if err != nil {
		return nil, err
	}
	return &frameStream{img: img}, nil
}

type frameStream struct {
	mu      sync.Mutex
	img     image.Image
	stopped bool
}

func (s *frameStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrDialogClosed
	}
	return s.img, nil
}

func (s *frameStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
