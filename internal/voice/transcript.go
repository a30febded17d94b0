package voice

import "strings"

// Transcript accumulates recognized speech. Final text is kept for the
// whole session; interim text lives only until the next event.
type Transcript struct {
	final   string
	interim string
}

func (t *Transcript) Reset() {
	t.final = ""
	t.interim = ""
}

// Apply folds one recognition event into the transcript.
func (t *Transcript) Apply(segments []Segment) {
	var interim []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Final {
			if t.final == "" {
				t.final = text
			} else {
				t.final += " " + text
			}
			continue
		}
		interim = append(interim, text)
	}
	t.interim = strings.Join(interim, " ")
}

func (t *Transcript) Final() string { return t.final }

func (t *Transcript) Interim() string { return t.interim }

// Display is what the input shows while listening: final text followed
// by whatever is still being recognized.
func (t *Transcript) Display() string {
	switch {
	case t.final == "":
		return t.interim
	case t.interim == "":
		return t.final
	default:
		return t.final + " " + t.interim
	}
}
