package player

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

// RestartThreshold is how far into an item Previous restarts it instead of moving back.
const RestartThreshold = 3 * time.Second

const defaultAlbum = "ZyloFM"

// Mode is what the queue is currently playing.
type Mode int

const (
	ModePlaylist Mode = iota
	ModeRadio
)

func (m Mode) String() string {
	switch m {
	case ModePlaylist:
		return "playlist"
	case ModeRadio:
		return "radio"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// DetectKind reports whether url must be played through an HLS loader.
func DetectKind(url string) models.StreamKind { return models.DetectStreamKind(url) }

// Item is one playable entry.
type Item struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Artist          string            `json:"artist"`
	Album           string            `json:"album,omitempty"`
	Artwork         string            `json:"artwork,omitempty"`
	StreamURL       string            `json:"stream_url"`
	Kind            models.StreamKind `json:"kind"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	Live            bool              `json:"live"`
}

// ItemFromMix converts an approved mix into a playlist entry.
func ItemFromMix(m *models.Mix) Item {
	return Item{
		ID:              m.ID,
		Title:           m.Title,
		Artist:          m.DJName,
		Album:           m.GenreName,
		Artwork:         m.CoverURL,
		StreamURL:       m.AudioURL,
		Kind:            DetectKind(m.AudioURL),
		DurationSeconds: m.DurationSeconds,
	}
}

// ItemFromStation converts a radio station into a live entry.
func ItemFromStation(s *models.RadioStation) Item {
	return Item{
		ID:        s.ID,
		Title:     s.Name,
		Artist:    s.Name,
		Album:     "Live radio",
		Artwork:   s.ImageURL,
		StreamURL: s.StreamURL,
		Kind:      s.Kind(),
		Live:      true,
	}
}

// Queue tracks the playing item. It is not safe for concurrent use.
type Queue struct {
	mode   Mode
	items  []Item
	index  int
	Repeat bool
}

// NewPlaylist creates a playlist queue positioned at startID, or the first item when startID is empty.
func NewPlaylist(items []Item, startID string) (*Queue, error) {
	q := &Queue{}
	if err := q.SwitchToPlaylist(items, startID); err != nil {
		return nil, err
	}
	return q, nil
}

// NewRadio creates a queue playing a single live stream.
func NewRadio(item Item) *Queue {
	q := &Queue{}
	q.SwitchToRadio(item)
	return q
}

func (q *Queue) Mode() Mode { return q.mode }
func (q *Queue) Len() int { return len(q.items) }
func (q *Queue) Index() int { return q.index }
func (q *Queue) Items() []Item { return append([]Item(nil), q.items...) }

// Current returns the playing item.
func (q *Queue) Current() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[q.index], true
}

// Next advances to the following item. At the end it wraps when Repeat is set and otherwise
// stays put and returns false. Radio queues never advance.
func (q *Queue) Next() bool {
	if q.mode == ModeRadio || len(q.items) == 0 {
		return false
	}
	if q.index+1 < len(q.items) {
		q.index++
		return true
	}
	if q.Repeat {
		q.index = 0
		return true
	}
	return false
}

// Previous moves back one item when less than [RestartThreshold] of the current one has played.
// Otherwise, or at the head of the queue, the current item is returned to be restarted.
func (q *Queue) Previous(elapsed time.Duration) Item {
	item, _ := q.Current()
	if q.mode == ModeRadio || elapsed > RestartThreshold || q.index == 0 {
		return item
	}
	q.index--
	return q.items[q.index]
}

// Select jumps to the item with id.
func (q *Queue) Select(id string) error {
	if q.mode == ModeRadio {
		return fmt.Errorf("%w: cannot select items while playing radio", shared.ErrInvalidTransition)
	}
	i := q.find(id)
	if i < 0 {
		return fmt.Errorf("%w: item %s is not queued", shared.ErrNotFound, id)
	}
	q.index = i
	return nil
}

// SwitchToRadio replaces the queue with a single live stream.
func (q *Queue) SwitchToRadio(item Item) {
	item.Live = true
	if item.Kind == "" {
		item.Kind = DetectKind(item.StreamURL)
	}
	q.mode = ModeRadio
	q.items = []Item{item}
	q.index = 0
}

// SwitchToPlaylist replaces the queue with items, starting at startID.
func (q *Queue) SwitchToPlaylist(items []Item, startID string) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: playlist is empty", shared.ErrInvalidInput)
	}

	queued := make([]Item, len(items))
	for i, item := range items {
		if item.Kind == "" {
			item.Kind = DetectKind(item.StreamURL)
		}
		queued[i] = item
	}

	start := 0
	if startID != "" {
		start = indexOf(queued, startID)
		if start < 0 {
			return fmt.Errorf("%w: item %s is not in the playlist", shared.ErrNotFound, startID)
		}
	}

	q.mode = ModePlaylist
	q.items = queued
	q.index = start
	return nil
}

// UpNext returns up to n items that follow the current one, wrapping around when Repeat is set.
func (q *Queue) UpNext(n int) []Item {
	if q.mode == ModeRadio || n <= 0 || len(q.items) == 0 {
		return nil
	}

	var upcoming []Item
	for i := q.index + 1; len(upcoming) < n; i++ {
		if i >= len(q.items) {
			if !q.Repeat {
				break
			}
			i -= len(q.items)
		}
		if i == q.index {
			break
		}
		upcoming = append(upcoming, q.items[i])
	}
	return upcoming
}

func (q *Queue) find(id string) int { return indexOf(q.items, id) }

func indexOf(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Artwork is one image entry of [MediaMetadata].
type Artwork struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type,omitempty"`
}

// MediaMetadata mirrors what the browser's media session shows on lock screens and headsets.
type MediaMetadata struct {
	Title   string    `json:"title"`
	Artist  string    `json:"artist"`
	Album   string    `json:"album"`
	Artwork []Artwork `json:"artwork"`
}

// Metadata builds the media session entry for item.
func Metadata(item Item) MediaMetadata {
	md := MediaMetadata{Title: item.Title, Artist: item.Artist, Album: item.Album, Artwork: []Artwork{}}
	if md.Album == "" {
		md.Album = defaultAlbum
	}
	if item.Artwork != "" {
		typ := mime.TypeByExtension(strings.ToLower(path.Ext(stripQuery(item.Artwork))))
		for _, size := range []string{"256x256", "512x512"} {
			md.Artwork = append(md.Artwork, Artwork{Src: item.Artwork, Sizes: size, Type: typ})
		}
	}
	return md
}

func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// State is a JSON view of a queue.
type State struct {
	Mode     Mode           `json:"mode"`
	Repeat   bool           `json:"repeat"`
	Current  *Item          `json:"current"`
	UpNext   []Item         `json:"up_next"`
	Metadata *MediaMetadata `json:"metadata"`
}

// State returns the current item, up to n upcoming items and the media session metadata.
func (q *Queue) State(n int) State {
	s := State{Mode: q.mode, Repeat: q.Repeat, UpNext: q.UpNext(n)}
	if s.UpNext == nil {
		s.UpNext = []Item{}
	}
	if item, ok := q.Current(); ok {
		md := Metadata(item)
		s.Current, s.Metadata = &item, &md
	}
	return s
}
