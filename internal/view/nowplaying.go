package view

import (
	"fmt"
	"math"

	"speakerpanel/internal/device"
)

const (
	TitleIdle    = "Not active"
	TitlePlaying = "Playing"
)

type NowPlaying struct {
	Playing     bool    `json:"playing"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	ImageURL    string  `json:"image_url,omitempty"`
	CurrentTime string  `json:"current_time"`
	Duration    string  `json:"duration"`
	Progress    float64 `json:"progress"` // percent, 0..100
	Volume      *int    `json:"volume,omitempty"`
	App         string  `json:"app"`
}

// FromSnapshot renders s. It depends on nothing but s.
func FromSnapshot(s device.Snapshot) NowPlaying {
	np := NowPlaying{
		Playing:     s.Playing,
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		ImageURL:    s.ImageURL,
		CurrentTime: FormatClock(s.CurrentTime),
		Duration:    FormatClock(s.Duration),
		Volume:      s.Volume,
		App:         s.App,
	}

	if np.Title == "" {
		if s.PlayerState == "IDLE" || s.PlayerState == "" {
			np.Title = TitleIdle
		} else {
			np.Title = TitlePlaying
		}
	}

	if s.Duration > 0 && !math.IsNaN(s.CurrentTime) {
		np.Progress = math.Max(0, math.Min(100, s.CurrentTime/s.Duration*100))
	}
	return np
}

// FormatClock renders seconds as m:ss. Zero, negative and NaN become 0:00.
func FormatClock(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
