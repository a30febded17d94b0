package device

// Snapshot is the device's playback state as reported by /api/info. Each
// poll produces a whole new Snapshot; nothing is merged.
type Snapshot struct {
	Playing     bool    `json:"playing"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	ImageURL    string  `json:"image_url"`
	CurrentTime float64 `json:"current_time"` // seconds
	Duration    float64 `json:"duration"`     // seconds
	Volume      *int    `json:"volume,omitempty"`
	VolumeMuted bool    `json:"volume_muted"`
	App         string  `json:"app"`
	PlayerState string  `json:"player_state"`
}

// Result is the outcome of a command. Failures of any kind arrive here as
// Success=false.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Volume  *int   `json:"volume,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Health struct {
	APIAvailable    bool              `json:"api_available"`
	Models          map[string]string `json:"models,omitempty"`
	Voice           string            `json:"voice,omitempty"`
	LLM             string            `json:"llm,omitempty"`
	MemoryAvailable bool              `json:"memory_available"`
	MemoryCount     int               `json:"memory_count"`
}

// ChatReply covers all three chat endpoints. The text chat and browser
// endpoints answer in Response, the device endpoint in Message.
type ChatReply struct {
	Success      bool   `json:"success"`
	Response     string `json:"response,omitempty"`
	Message      string `json:"message,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`
	MemoryCount  int    `json:"memory_count,omitempty"`
	MemoryStored bool   `json:"memory_stored,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Answer returns whichever reply text the endpoint filled in.
func (r ChatReply) Answer() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Message
}
