// Package tesseract implements docparse.OCR with the Tesseract engine via gosseract.
package tesseract

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Client runs one Tesseract instance per call; gosseract clients are not
// safe for concurrent use.
type Client struct {
	langs []string
	sem   chan struct{}
}

// New returns a client for langs (default "eng") running at most workers
// recognitions at once.
func New(langs []string, workers int) *Client {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	if workers <= 0 {
		workers = 2
	}
	return &Client{langs: langs, sem: make(chan struct{}, workers)}
}

// Text recognises the text in an encoded image.
func (c *Client) Text(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-c.sem }()

	cl := gosseract.NewClient()
	defer cl.Close()
	if err := cl.SetLanguage(c.langs...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := cl.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := cl.Text()
	if err != nil {
		return "", fmt.Errorf("recognise: %w", err)
	}
	return text, nil
}

// Version reports the linked Tesseract version.
func Version() string { return gosseract.Version() }
