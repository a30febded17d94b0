// Package artwork derives dominant colours from album art so the panel can
// tint itself after the track.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	color_extractor "github.com/marekm4/color-extractor"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"speakerpanel/internal/view"
)

const maxImageBytes = 8 << 20

type Config struct {
	CacheSize int
	Timeout   time.Duration
	UserAgent string
}

// Extractor fetches images and caches their palettes by URL.
type Extractor struct {
	client *http.Client
	ua     string
	cache  *lru.Cache[string, []string]
	group  singleflight.Group
	log    zerolog.Logger
}

func NewExtractor(cfg Config, log zerolog.Logger) (*Extractor, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "speakerpanel/1.0"
	}
	cache, err := lru.New[string, []string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("artwork cache: %w", err)
	}
	return &Extractor{
		client: &http.Client{Timeout: cfg.Timeout},
		ua:     cfg.UserAgent,
		cache:  cache,
		log:    log.With().Str("component", "artwork").Logger(),
	}, nil
}

// Cached returns the palette for url if it was extracted before.
func (e *Extractor) Cached(url string) ([]string, bool) {
	return e.cache.Get(url)
}

// Palette returns the dominant colours of the image at url as #rrggbb.
// Concurrent calls for the same url share one download.
func (e *Extractor) Palette(ctx context.Context, url string) ([]string, error) {
	if p, ok := e.cache.Get(url); ok {
		return p, nil
	}
	v, err, _ := e.group.Do(url, func() (any, error) {
		p, err := e.extract(ctx, url)
		if err != nil {
			return nil, err
		}
		e.cache.Add(url, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (e *Extractor) extract(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.ua)

	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: status=%d", url, res.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(res.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	colours := color_extractor.ExtractColors(img)
	if len(colours) == 0 {
		return nil, errors.New("no dominant colours")
	}
	out := make([]string, 0, len(colours))
	for _, c := range colours {
		out = append(out, hex(c))
	}
	return out, nil
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Sink forwards every update and follows now-playing updates with an
// artwork update once the cover's palette is known. Only the cover still
// on screen is rendered.
type Sink struct {
	next view.Sink
	ex   *Extractor
	log  zerolog.Logger

	mu      sync.Mutex
	current string
	wg      sync.WaitGroup
}

func NewSink(next view.Sink, ex *Extractor, log zerolog.Logger) *Sink {
	return &Sink{next: next, ex: ex, log: log.With().Str("component", "artwork").Logger()}
}

func (s *Sink) Render(u view.Update) {
	s.next.Render(u)

	np, ok := u.Data.(view.NowPlaying)
	if u.Kind != view.KindNowPlaying || !ok {
		return
	}

	s.mu.Lock()
	if np.ImageURL == s.current {
		s.mu.Unlock()
		return
	}
	s.current = np.ImageURL
	s.mu.Unlock()

	if np.ImageURL == "" {
		s.next.Render(view.Update{Kind: view.KindArtwork, Data: view.Artwork{}})
		return
	}
	if p, ok := s.ex.Cached(np.ImageURL); ok {
		s.next.Render(view.Update{Kind: view.KindArtwork, Data: view.Artwork{URL: np.ImageURL, Colours: p}})
		return
	}

	s.wg.Add(1)
	go func(url string) {
		defer s.wg.Done()
		s.fetch(url)
	}(np.ImageURL)
}

func (s *Sink) fetch(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ex.client.Timeout)
	defer cancel()

	p, err := s.ex.Palette(ctx, url)
	if err != nil {
		s.log.Debug().Err(err).Str("url", url).Msg("palette extraction failed")
		return
	}

	s.mu.Lock()
	stale := s.current != url
	s.mu.Unlock()
	if stale {
		return
	}
	s.next.Render(view.Update{Kind: view.KindArtwork, Data: view.Artwork{URL: url, Colours: p}})
}

// Wait blocks until in-flight extractions finish.
func (s *Sink) Wait() { s.wg.Wait() }
