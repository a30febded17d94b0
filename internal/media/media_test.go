package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakerpanel/internal/device"
	"speakerpanel/internal/view"
	"speakerpanel/internal/view/viewtest"
)

type issued struct {
	path  string
	delay time.Duration
}

type fakeIssuer struct {
	calls []issued
	ok    bool
}

func (f *fakeIssuer) Issue(_ context.Context, path string, delay time.Duration) device.Result {
	f.calls = append(f.calls, issued{path, delay})
	return device.Result{Success: f.ok}
}

func catalog(names ...string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) { return names, nil }
}

func setup(ok bool) (*Browser, *Browser, *Selection, *fakeIssuer, *viewtest.Recorder) {
	rec := &viewtest.Recorder{}
	cmd := &fakeIssuer{ok: ok}
	sel := NewSelection(rec)
	radio := NewBrowser(Radio, catalog("SRF 1", "FM4"), device.RadioPlayPath, cmd, sel, rec, 1500*time.Millisecond, zerolog.Nop())
	video := NewBrowser(Video, catalog("Smooth Jazz"), device.VideoPlayPath, cmd, sel, rec, 2000*time.Millisecond, zerolog.Nop())
	return radio, video, sel, cmd, rec
}

func TestPlay_UsesKindSpecificPathAndDelay(t *testing.T) {
	radio, video, _, cmd, _ := setup(true)

	radio.Play(context.Background(), "SRF 1")
	video.Play(context.Background(), "Smooth Jazz")

	assert.Equal(t, []issued{
		{"/api/radio/play/SRF%201", 1500 * time.Millisecond},
		{"/api/youtube/play/Smooth%20Jazz", 2000 * time.Millisecond},
	}, cmd.calls)
}

func TestSelection_IsExclusiveAcrossKinds(t *testing.T) {
	radio, video, sel, _, _ := setup(true)

	radio.Play(context.Background(), "FM4")
	kind, name := sel.Current()
	assert.Equal(t, Radio, kind)
	assert.Equal(t, "FM4", name)

	video.Play(context.Background(), "Smooth Jazz")
	assert.False(t, sel.Is(Radio, "FM4"))
	assert.True(t, sel.Is(Video, "Smooth Jazz"))

	radio.Play(context.Background(), "SRF 1")
	assert.False(t, sel.Is(Video, "Smooth Jazz"))
	assert.True(t, sel.Is(Radio, "SRF 1"))

	sel.Clear()
	kind, _ = sel.Current()
	assert.Empty(t, kind)
}

func TestPlay_FailureLeavesSelectionAlone(t *testing.T) {
	radio, _, sel, _, _ := setup(false)
	sel.Select(Video, "Smooth Jazz")

	res := radio.Play(context.Background(), "FM4")
	assert.False(t, res.Success)
	assert.True(t, sel.Is(Video, "Smooth Jazz"))
}

func TestLoad_RendersEntriesWithSelection(t *testing.T) {
	radio, _, sel, _, rec := setup(true)
	sel.Select(Radio, "FM4")

	names, err := radio.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SRF 1", "FM4"}, names)

	last, ok := rec.Last(view.KindCatalog)
	require.True(t, ok)
	cat := last.(view.Catalog)
	assert.Equal(t, "radio", cat.Kind)
	require.Len(t, cat.Entries, 2)
	assert.False(t, cat.Entries[0].Selected)
	assert.True(t, cat.Entries[1].Selected)
	assert.Equal(t, EntryID(Radio, "FM4"), cat.Entries[1].ID)
}

func TestLoad_ErrorRendersNothing(t *testing.T) {
	rec := &viewtest.Recorder{}
	b := NewBrowser(Radio, func(context.Context) ([]string, error) { return nil, errors.New("down") },
		device.RadioPlayPath, &fakeIssuer{}, NewSelection(rec), rec, time.Second, zerolog.Nop())

	_, err := b.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, rec.Count(view.KindCatalog))
}

func TestEntryID_DistinguishesKinds(t *testing.T) {
	assert.NotEqual(t, EntryID(Radio, "Jazz"), EntryID(Video, "Jazz"))
	assert.Equal(t, EntryID(Radio, "Jazz"), EntryID(Radio, "Jazz"))
}
