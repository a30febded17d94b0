package voice

import "errors"

var (
	ErrBusy        = errors.New("voice: busy")
	ErrUnavailable = errors.New("voice: speech capture unavailable")
	ErrEmptyText   = errors.New("voice: empty text")
	ErrSendFailed  = errors.New("voice: send failed")

	// ErrPlaybackRejected is returned by an Element when the platform
	// refuses to play, typically for lack of a user gesture.
	ErrPlaybackRejected = errors.New("voice: playback rejected")
	// ErrPlaybackSuperseded is returned by an Element when a newer play
	// request replaced this one before it settled.
	ErrPlaybackSuperseded = errors.New("voice: playback superseded")
	ErrNothingPending     = errors.New("voice: no playback pending")
)

// Recognizer is the platform's speech capture. Results arrive later as
// Events passed to Session.HandleEvent.
type Recognizer interface {
	Start() error
	Stop()
}

type EventType string

const (
	EventStart  EventType = "start"
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// Recognizer error codes as reported by browser speech recognition.
const (
	CodeNoSpeech          = "no-speech"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeAborted           = "aborted"
	CodeNetwork           = "network"
)

// Segment is one recognition result. Interim segments may still change;
// final ones never do.
type Segment struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Event is every recognizer callback, flattened into one shape.
type Event struct {
	Type     EventType `json:"type"`
	Segments []Segment `json:"segments,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type errorClass int

const (
	errorOther errorClass = iota
	errorNoSpeech
	errorPermission
)

func classify(code string) errorClass {
	switch code {
	case CodeNoSpeech:
		return errorNoSpeech
	case CodeNotAllowed, CodeServiceNotAllowed:
		return errorPermission
	default:
		return errorOther
	}
}
