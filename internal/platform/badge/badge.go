// Package badge turns uploaded files and captured camera frames into the
// encoded badge picture stored on a registration. A badge picture is a data
// URL: "data:<mime>;base64,<payload>".
package badge

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty            = errors.New("badge image is empty")
	ErrTooLarge         = errors.New("badge image exceeds maximum allowed size")
	ErrUnsupportedImage = errors.New("badge file is not an image")
)

// DefaultMaxBytes bounds uploads when no limit is configured (5 MiB).
const DefaultMaxBytes = 5 << 20

// DefaultMaxSide is the longest edge, in pixels, of an encoded capture.
const DefaultMaxSide = 640

// FileName is the attachment name of the badge in the confirmation email.
const FileName = "badge.jpg"

// DataURL encodes data the way a browser FileReader.readAsDataURL does.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Split separates an encoded badge into its metadata prefix and payload. The
// payload is everything after the first comma; when there is no comma, or
// nothing follows it, the whole string is the payload.
func Split(encoded string) (meta, payload string) {
	idx := strings.IndexByte(encoded, ',')
	if idx < 0 || idx == len(encoded)-1 {
		return "", encoded
	}
	return encoded[:idx], encoded[idx+1:]
}

// Payload returns the raw-content part of an encoded badge.
func Payload(encoded string) string {
	_, p := Split(encoded)
	return p
}

// MIMEType returns the media type recorded in a data URL prefix, or "" when
// the string carries none.
func MIMEType(encoded string) string {
	meta, _ := Split(encoded)
	meta = strings.TrimPrefix(meta, "data:")
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		meta = meta[:i]
	}
	return meta
}

// FromUpload reads an uploaded file into an encoded badge. The declared
// content type is trusted when it is an image type; otherwise the content is
// sniffed. Non-image files are rejected.
func FromUpload(r io.Reader, contentType string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading badge upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}

	mime := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrUnsupportedImage
	}
	return DataURL(mime, data), nil
}

// Encode draws img onto an offscreen surface no larger than maxSide on its
// longest edge and returns it as a JPEG data URL.
func Encode(img image.Image, maxSide int) (string, error) {
	if img == nil {
		return "", ErrEmpty
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w == 0 || h == 0 {
		return "", ErrEmpty
	}
	if w > maxSide || h > maxSide {
		if w >= h {
			h = h * maxSide / w
			w = maxSide
		} else {
			w = w * maxSide / h
			h = maxSide
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	surface := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(surface, surface.Bounds(), img, src, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("encoding badge: %w", err)
	}
	return DataURL("image/jpeg", buf.Bytes()), nil
}

// Decode parses an encoded badge back into raw bytes.
func Decode(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrEmpty
	}
	data, err := base64.StdEncoding.DecodeString(Payload(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding badge payload: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a raw JPEG, PNG or WebP frame.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}
