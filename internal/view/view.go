// Package view defines the render updates the panel emits. Updates are
// plain data; how they reach a screen is up to the Sink.
package view

type Kind string

const (
	KindNowPlaying   Kind = "now_playing"
	KindArtwork      Kind = "artwork"
	KindCatalog      Kind = "catalog"
	KindSelection    Kind = "selection"
	KindVolume       Kind = "volume"
	KindMicAvailable Kind = "mic_available"
	KindListening    Kind = "listening"
	KindTranscript   Kind = "transcript"
	KindInput        Kind = "input"
	KindBusy         Kind = "busy"
	KindExchange     Kind = "exchange"
	KindError        Kind = "error"
	KindManualPlay   Kind = "manual_play"
	KindStatusLine   Kind = "status_line"
	KindPreferences  Kind = "preferences"

	// commands for the page's platform objects
	KindRecognizer Kind = "recognizer"
	KindAudio      Kind = "audio"
)

type Update struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data,omitempty"`
}

type Sink interface {
	Render(u Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(u Update)

func (f SinkFunc) Render(u Update) { f(u) }

// Discard drops every update.
var Discard Sink = SinkFunc(func(Update) {})

type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

type Catalog struct {
	Kind    string  `json:"kind"`
	Entries []Entry `json:"entries"`
}

type Selection struct {
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
}

type Exchange struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	MemoryStored bool   `json:"memory_stored,omitempty"`
	MemoryCount  int    `json:"memory_count,omitempty"`
}

type ManualPlay struct {
	URL     string `json:"url"`
	Visible bool   `json:"visible"`
}

type Artwork struct {
	URL     string   `json:"url"`
	Colours []string `json:"colours"`
}

type Transcript struct {
	Final   string `json:"final"`
	Interim string `json:"interim,omitempty"`
	Display string `json:"display"`
}
