package ppm

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	img := &Image{Width: 3, Height: 2, Pix: []byte{
		0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF,
		0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80, 0x90,
	}}

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Width != img.Width || got.Height != img.Height {
		t.Fatalf("dimensions: got %dx%d, want %dx%d", got.Width, got.Height, img.Width, img.Height)
	}
	if !bytes.Equal(got.Pix, img.Pix) {
		t.Fatalf("pixel data differs:\n got %v\nwant %v", got.Pix, img.Pix)
	}
}

func TestWriteHeader(t *testing.T) {
	img := &Image{Width: 2, Height: 1, Pix: make([]byte, 6)}

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "P6\n2 1\n255\n") {
		t.Fatalf("unexpected header: %q", buf.String()[:11])
	}
	if buf.Len() != 11+6 {
		t.Fatalf("expected %d bytes, got %d", 11+6, buf.Len())
	}
}

func TestWriteRejectsShortBuffer(t *testing.T) {
	img := &Image{Width: 2, Height: 2, Pix: make([]byte, 3)}
	if err := Write(&bytes.Buffer{}, img); err == nil {
		t.Fatal("expected error for short pixel buffer")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	if _, err := Read(strings.NewReader("P3\n1 1\n255\n000")); err == nil {
		t.Fatal("expected error for ASCII PPM")
	}
}

func TestReadSkipsComments(t *testing.T) {
	data := "P6\n# a comment\n1 1\n255\n\xAA\xBB\xCC"
	got, err := Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC}
	if !bytes.Equal(got.Pix, want) {
		t.Fatalf("pix: got %v, want %v", got.Pix, want)
	}
}

func TestReadRejectsTruncatedPixels(t *testing.T) {
	if _, err := Read(strings.NewReader("P6\n2 2\n255\n\x00\x01")); err == nil {
		t.Fatal("expected error for truncated pixel data")
	}
}
