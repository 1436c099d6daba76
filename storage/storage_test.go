package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TgFM/model"
)

func track(id string) model.Track {
	return model.Track{ID: id, Title: "Track " + id, URL: "https://example.test/" + id, Duration: 60}
}

func TestNewCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRecordPlayNewestFirstAndCapped(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < historyCap+10; i++ {
		require.NoError(t, s.RecordPlay(7, track(string(rune('a'+i%26)))))
	}

	entries := s.History(7, 0)
	require.Len(t, entries, historyCap)

	// Newest first: the last recorded track leads.
	last := track(string(rune('a' + (historyCap + 9) % 26)))
	assert.Equal(t, last.Title, entries[0].Title)

	limited := s.History(7, 5)
	assert.Len(t, limited, 5)
}

func TestHistorySurvivesReload(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.RecordPlay(7, track("x")))

	reloaded, err := New(dir)
	require.NoError(t, err)
	entries := reloaded.History(7, 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "Track x", entries[0].Title)
	assert.NotEmpty(t, entries[0].Timestamp)
}

func TestPlaylistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.SavePlaylist(7, "focus", []model.Track{track("a"), track("b")}))
	require.NoError(t, s.SavePlaylist(7, "gym", []model.Track{track("c")}))
	require.NoError(t, s.SaveQueue(7, []model.Track{track("q")}))

	assert.Equal(t, []string{"focus", "gym"}, s.PlaylistNames(7))

	got, ok := s.Playlist(7, "focus")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)

	_, ok = s.Playlist(7, "missing")
	assert.False(t, ok)

	// Everything persists across a reload.
	reloaded, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"focus", "gym"}, reloaded.PlaylistNames(7))
	queue := reloaded.Queue(7)
	require.Len(t, queue, 1)
	assert.Equal(t, "q", queue[0].ID)
}

func TestSavePlaylistReplacesByName(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SavePlaylist(7, "focus", []model.Track{track("a"), track("b")}))
	require.NoError(t, s.SavePlaylist(7, "focus", []model.Track{track("c")}))

	got, ok := s.Playlist(7, "focus")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func writePlaylistsFile(t *testing.T, dir string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, playlistsFile), data, 0644))
}

func TestLoadMigratesLegacyBareArray(t *testing.T) {
	dir := t.TempDir()
	writePlaylistsFile(t, dir, map[string]interface{}{
		"7": []model.Track{track("a"), track("b")},
	})

	s, err := New(dir)
	require.NoError(t, err)

	queue := s.Queue(7)
	require.Len(t, queue, 2)
	assert.Equal(t, "a", queue[0].ID)
	assert.Empty(t, s.PlaylistNames(7))

	// Migration rewrites the file in the tagged form.
	data, err := os.ReadFile(filepath.Join(dir, playlistsFile))
	require.NoError(t, err)
	var tagged map[string]model.PlaylistBook
	require.NoError(t, json.Unmarshal(data, &tagged))
	assert.Len(t, tagged["7"].Queue, 2)
}

func TestLoadMigratesLegacyNamedMap(t *testing.T) {
	dir := t.TempDir()
	writePlaylistsFile(t, dir, map[string]interface{}{
		"7": map[string][]model.Track{
			"focus": {track("a")},
		},
	})

	s, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"focus"}, s.PlaylistNames(7))
	got, ok := s.Playlist(7, "focus")
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)
}

func TestLoadTaggedFormIsNotReMigrated(t *testing.T) {
	dir := t.TempDir()
	writePlaylistsFile(t, dir, map[string]model.PlaylistBook{
		"7": {
			Queue: []model.Track{track("q")},
			Named: map[string][]model.Track{"gym": {track("g")}},
		},
	})

	s, err := New(dir)
	require.NoError(t, err)

	queue := s.Queue(7)
	require.Len(t, queue, 1)
	assert.Equal(t, "q", queue[0].ID)
	assert.Equal(t, []string{"gym"}, s.PlaylistNames(7))
}

func TestUsersAreIsolated(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.RecordPlay(1, track("a")))
	require.NoError(t, s.SavePlaylist(1, "mine", []model.Track{track("a")}))

	assert.Empty(t, s.History(2, 0))
	assert.Empty(t, s.PlaylistNames(2))
	_, ok := s.Playlist(2, "mine")
	assert.False(t, ok)
}
