package device

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	PathInfo       = "/api/info"
	PathPlay       = "/api/play"
	PathPause      = "/api/pause"
	PathStop       = "/api/stop"
	PathSkip       = "/api/skip"
	PathVolumeUp   = "/api/volumeup"
	PathVolumeDown = "/api/volumedown"

	PathRadioStations = "/api/radio/stations"
	PathVideoList     = "/api/youtube/list"

	PathAssistantHealth = "/api/assistant/health"
	PathChatText        = "/api/assistant/chat/text"
	PathChatBrowser     = "/api/assistant/chat/browser"
	PathChatDevice      = "/api/assistant/chat"
)

// VolumePath clamps level to 0..100.
func VolumePath(level int) string {
	level = max(0, min(100, level))
	return "/api/volume/" + strconv.Itoa(level)
}

// SeekPath formats pos as m:ss, truncating sub-second precision.
func SeekPath(pos time.Duration) string {
	if pos < 0 {
		pos = 0
	}
	secs := int(pos / time.Second)
	return fmt.Sprintf("/api/seek/%d:%02d", secs/60, secs%60)
}

func RadioPlayPath(name string) string {
	return "/api/radio/play/" + url.PathEscape(name)
}

func VideoPlayPath(name string) string {
	return "/api/youtube/play/" + url.PathEscape(name)
}
