package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/shared"
)

// StreamKind tells the player how to attach a stream.
type StreamKind string

const (
	StreamProgressive StreamKind = "progressive"
	StreamHLS         StreamKind = "hls"
)

// DetectStreamKind reports [StreamHLS] for URLs whose path ends in .m3u8.
func DetectStreamKind(rawURL string) StreamKind {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	if strings.HasSuffix(strings.ToLower(path), ".m3u8") {
		return StreamHLS
	}
	return StreamProgressive
}

// Genre groups mixes, stations and karaoke tracks.
type Genre struct {
	Record
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
	ImageURL    string `json:"image_url" db:"image_url"`
}

// NewGenre creates a genre with a slug derived from name.
func NewGenre(name, description string) *Genre {
	name = strings.TrimSpace(name)
	return &Genre{Name: name, Slug: shared.Slugify(name), Description: strings.TrimSpace(description)}
}

func (g *Genre) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("%w: genre name is required", shared.ErrInvalidInput)
	}
	if g.Slug == "" || g.Slug != shared.Slugify(g.Slug) {
		return fmt.Errorf("%w: invalid slug %q", shared.ErrInvalidInput, g.Slug)
	}
	return validateOptionalURL("image_url", g.ImageURL)
}

// Banner is a home page promotion slot.
type Banner struct {
	Record
	Title    string `json:"title" db:"title"`
	Subtitle string `json:"subtitle" db:"subtitle"`
	ImageURL string `json:"image_url" db:"image_url"`
	LinkURL  string `json:"link_url" db:"link_url"`
	Position int    `json:"position" db:"position"`
	Active   bool   `json:"active" db:"active"`
}

func (b *Banner) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: banner title is required", shared.ErrInvalidInput)
	}
	if b.ImageURL == "" {
		return fmt.Errorf("%w: banner image is required", shared.ErrInvalidInput)
	}
	if b.Position < 0 {
		return fmt.Errorf("%w: banner position cannot be negative", shared.ErrInvalidInput)
	}
	if err := validateOptionalURL("image_url", b.ImageURL); err != nil {
		return err
	}
	if strings.HasPrefix(b.LinkURL, "/") {
		return nil
	}
	return validateOptionalURL("link_url", b.LinkURL)
}

// RadioStation is a live stream listeners can switch to.
type RadioStation struct {
	Record
	Name          string     `json:"name" db:"name"`
	Slug          string     `json:"slug" db:"slug"`
	StreamURL     string     `json:"stream_url" db:"stream_url"`
	Description   string     `json:"description" db:"description"`
	ImageURL      string     `json:"image_url" db:"image_url"`
	GenreID       string     `json:"genre_id,omitempty" db:"genre_id"`
	Active        bool       `json:"active" db:"active"`
	Online        bool       `json:"online" db:"online"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty" db:"last_checked_at"`
}

// NewRadioStation creates an active station with a slug derived from name.
func NewRadioStation(name, streamURL string) *RadioStation {
	name = strings.TrimSpace(name)
	return &RadioStation{Name: name, Slug: shared.Slugify(name), StreamURL: strings.TrimSpace(streamURL), Active: true}
}

// Kind reports how the stream must be played.
func (s *RadioStation) Kind() StreamKind { return DetectStreamKind(s.StreamURL) }

func (s *RadioStation) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: station name is required", shared.ErrInvalidInput)
	}
	if s.Slug == "" || s.Slug != shared.Slugify(s.Slug) {
		return fmt.Errorf("%w: invalid slug %q", shared.ErrInvalidInput, s.Slug)
	}
	if s.StreamURL == "" {
		return fmt.Errorf("%w: stream url is required", shared.ErrInvalidInput)
	}
	if err := validateOptionalURL("stream_url", s.StreamURL); err != nil {
		return err
	}
	return validateOptionalURL("image_url", s.ImageURL)
}

// KaraokeTrack is a sing-along track with optional LRC or plain-text lyrics.
type KaraokeTrack struct {
	Record
	Title           string `json:"title" db:"title"`
	Artist          string `json:"artist" db:"artist"`
	AudioURL        string `json:"audio_url" db:"audio_url"`
	AudioPublicID   string `json:"-" db:"audio_public_id"`
	Lyrics          string `json:"lyrics" db:"lyrics"`
	CoverURL        string `json:"cover_url" db:"cover_url"`
	DurationSeconds int    `json:"duration_seconds" db:"duration_seconds"`
	GenreID         string `json:"genre_id,omitempty" db:"genre_id"`
}

func (k *KaraokeTrack) Validate() error {
	if strings.TrimSpace(k.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(k.Artist) == "" {
		return fmt.Errorf("%w: artist is required", shared.ErrInvalidInput)
	}
	if k.AudioURL == "" {
		return fmt.Errorf("%w: audio is required", shared.ErrInvalidInput)
	}
	if k.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	return validateOptionalURL("cover_url", k.CoverURL)
}

// HasSyncedLyrics reports whether the lyrics carry LRC timestamps.
func (k *KaraokeTrack) HasSyncedLyrics() bool {
	for _, line := range strings.Split(k.Lyrics, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 3 && line[0] == '[' && line[1] >= '0' && line[1] <= '9' {
			return true
		}
	}
	return false
}

func validateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) url", shared.ErrInvalidInput, field)
	}
	return nil
}
