package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotLoaded is returned by Chime.Play before a successful Load.
var ErrNotLoaded = errors.New("chime not loaded")

// Playable is a decoded sound ready for the host audio output.
type Playable interface {
	Play() error
}

// Decoder turns fetched bytes into a Playable (the host audio decode API).
type Decoder interface {
	Decode(data []byte) (Playable, error)
}

// Chime loads the notification sound through an explicit fetch -> decode
// pipeline, then plays the decoded result on demand. Each stage returns its
// own error so a failure is diagnosable and never retried implicitly.
type Chime struct {
	url      string
	client   *http.Client
	decoder  Decoder
	playable Playable
}

func NewChime(url string, client *http.Client, decoder Decoder) *Chime {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Chime{url: url, client: client, decoder: decoder}
}

// Load fetches and decodes the sound. Safe to call again after a failure;
// a successful load is kept.
func (c *Chime) Load(ctx context.Context) error {
	if c.playable != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("chime request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chime fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chime fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chime read: %w", err)
	}
	playable, err := c.decoder.Decode(data)
	if err != nil {
		return fmt.Errorf("chime decode: %w", err)
	}
	c.playable = playable
	return nil
}

// Play plays the decoded sound. Implements SoundPlayer.
func (c *Chime) Play() error {
	if c.playable == nil {
		return ErrNotLoaded
	}
	return c.playable.Play()
}
