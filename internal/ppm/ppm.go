// Package ppm reads and writes binary PPM (P6) images.
//
// The format is a plain-text header ("P6", width, height, 255) followed
// by raw interleaved 8-bit RGB bytes. No compression, no metadata.
package ppm

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Image is a packed 8-bit RGB image, rows top to bottom.
type Image struct {
	Width  int
	Height int
	Pix    []byte // len = Width * Height * 3
}

// Write encodes img as binary PPM to w.
func Write(w io.Writer, img *Image) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("ppm: invalid dimensions %dx%d", img.Width, img.Height)
	}
	if want := img.Width * img.Height * 3; len(img.Pix) != want {
		return fmt.Errorf("ppm: pixel buffer is %d bytes, want %d", len(img.Pix), want)
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	if _, err := bw.Write(img.Pix); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes img to the named file, truncating it if it exists.
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ppm: %w", err)
	}
	if err := Write(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a binary PPM image from r. Only 8-bit P6 is supported.
func Read(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	magic, err := readToken(br)
	if err != nil {
		return nil, err
	}
	if magic != "P6" {
		return nil, fmt.Errorf("ppm: unsupported magic %q", magic)
	}

	var width, height, maxval int
	for _, dst := range []*int{&width, &height, &maxval} {
		tok, err := readToken(br)
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Sscanf(tok, "%d", dst); err != nil {
			return nil, fmt.Errorf("ppm: bad header field %q", tok)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ppm: invalid dimensions %dx%d", width, height)
	}
	if maxval != 255 {
		return nil, fmt.Errorf("ppm: unsupported max value %d", maxval)
	}

	pix := make([]byte, width*height*3)
	if _, err := io.ReadFull(br, pix); err != nil {
		return nil, fmt.Errorf("ppm: short pixel data: %w", err)
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// ReadFile reads a PPM image from the named file.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ppm: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// readToken returns the next whitespace-delimited header token,
// skipping '#' comment lines. Exactly one whitespace byte follows the
// last header token, so pixel data is left intact.
func readToken(br *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", fmt.Errorf("ppm: truncated header: %w", err)
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := br.ReadString('\n'); err != nil {
				return "", fmt.Errorf("ppm: truncated comment: %w", err)
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}
