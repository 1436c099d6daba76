package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/model"
)

// fakePresenter records every presentation call so tests can assert on
// ordering and cleanup without a Telegram connection.
type fakePresenter struct {
	mu        sync.Mutex
	nextID    int
	statuses  []string     // texts shown via Announce/AnnouncePhoto/Update
	transient []MessageRef // notices created by NotifyTransient
	dismissed []MessageRef
	sent      []string // audio titles in send order
}

func (p *fakePresenter) newRef(chatID int64) MessageRef {
	p.nextID++
	return MessageRef{ChatID: chatID, MessageID: p.nextID}
}

func (p *fakePresenter) Announce(_ context.Context, chatID int64, text string, _ Keyboard) (MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, text)
	return p.newRef(chatID), nil
}

func (p *fakePresenter) AnnouncePhoto(_ context.Context, chatID int64, _ string, caption string, _ Keyboard) (MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, caption)
	return p.newRef(chatID), nil
}

func (p *fakePresenter) Update(_ context.Context, _ MessageRef, text string, _ Keyboard) UpdateResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, text)
	return UpdateApplied
}

func (p *fakePresenter) Dismiss(_ context.Context, ref MessageRef) UpdateResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, ref)
	return UpdateApplied
}

func (p *fakePresenter) NotifyTransient(_ context.Context, chatID int64, text string) (MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, text)
	ref := p.newRef(chatID)
	p.transient = append(p.transient, ref)
	return ref, nil
}

func (p *fakePresenter) SendAudio(_ context.Context, _ int64, _, title string, _ int, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, title)
	return nil
}

func (p *fakePresenter) ChatAction(context.Context, int64, string) {}

func (p *fakePresenter) sentTitles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *fakePresenter) lastStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return ""
	}
	return p.statuses[len(p.statuses)-1]
}

// transientsDismissed reports whether every transient notice was later
// dismissed.
func (p *fakePresenter) transientsDismissed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ref := range p.transient {
		found := false
		for _, d := range p.dismissed {
			if d == ref {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// fakeResolver serves canned metadata and pretend audio files.
type fakeResolver struct {
	mu         sync.Mutex
	fetched    []string
	fetchErr   map[string]error
	blockFetch chan struct{} // fetches wait here when non-nil
	playlist   []model.Track
}

func (r *fakeResolver) Search(_ context.Context, query string, limit int) ([]model.Track, error) {
	tracks := make([]model.Track, 0, limit)
	for i := 0; i < limit; i++ {
		tracks = append(tracks, testTrackN(i))
	}
	return tracks, nil
}

func (r *fakeResolver) ResolveOne(_ context.Context, url string) (model.Track, error) {
	id := strings.TrimPrefix(url, "https://example.test/")
	return model.Track{ID: id, Title: "Track " + id, URL: url, Duration: 100}, nil
}

func (r *fakeResolver) ResolvePlaylist(context.Context, string) ([]model.Track, error) {
	return r.playlist, nil
}

func (r *fakeResolver) FetchAudio(ctx context.Context, track model.Track, _ int64) (*resolver.AudioFile, error) {
	r.mu.Lock()
	r.fetched = append(r.fetched, track.ID)
	block := r.blockFetch
	err := r.fetchErr[track.ID]
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &resolver.AudioFile{Path: "/tmp/" + track.ID + ".mp3", Cached: true}, nil
}

func (r *fakeResolver) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetched)
}

type fakeRecorder struct {
	mu     sync.Mutex
	titles []string
}

func (r *fakeRecorder) RecordPlay(_ int64, track model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, track.Title)
	return nil
}

func (r *fakeRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func testTrackN(i int) model.Track {
	return model.Track{
		ID:       fmt.Sprintf("id%d", i),
		Title:    fmt.Sprintf("Track %d", i),
		URL:      fmt.Sprintf("https://example.test/id%d", i),
		Duration: 100 + i,
	}
}

func testTracks(n int) []model.Track {
	tracks := make([]model.Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, testTrackN(i))
	}
	return tracks
}

type fixture struct {
	store     *Store
	presenter *fakePresenter
	resolver  *fakeResolver
	recorder  *fakeRecorder
}

func newFixture() *fixture {
	f := &fixture{
		presenter: &fakePresenter{},
		resolver:  &fakeResolver{},
		recorder:  &fakeRecorder{},
	}
	f.store = NewStore(Deps{
		Resolver:  f.resolver,
		Presenter: f.presenter,
		Recorder:  f.recorder,
		Hub:       NewHub(),
		Cfg: &config.Config{
			PlayPolicy:      "append",
			TrackGapSeconds: 0,
		},
	})
	return f
}

const (
	testUser = int64(1001)
	testChat = int64(2002)

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestEnqueueKeepsOrderAndDuplicates(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)

	a, b := testTrackN(0), testTrackN(1)
	assert.Equal(t, 2, s.Enqueue(a, b))
	assert.Equal(t, 3, s.Enqueue(a)) // same track twice is allowed

	queue, current, paused := s.Queue()
	require.Len(t, queue, 3)
	assert.Equal(t, []string{"id0", "id1", "id0"}, []string{queue[0].ID, queue[1].ID, queue[2].ID})
	assert.Equal(t, 0, current)
	assert.False(t, paused)
}

func TestGetOrCreateIsAtomic(t *testing.T) {
	f := newFixture()

	const callers = 16
	sessions := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = f.store.GetOrCreate(testUser, testChat)
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestPlayTracksDeliversAllInOrder(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)

	out := s.PlayTracks(context.Background(), testTracks(3))
	assert.Equal(t, 3, out.Added)
	assert.True(t, out.Started)

	require.Eventually(t, func() bool {
		return len(f.presenter.sentTitles()) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{"Track 0", "Track 1", "Track 2"}, f.presenter.sentTitles())

	require.Eventually(t, func() bool {
		return strings.Contains(f.presenter.lastStatus(), "Queue finished")
	}, waitFor, tick)

	assert.Equal(t, []string{"Track 0", "Track 1", "Track 2"}, f.recorder.recorded())
	assert.True(t, f.presenter.transientsDismissed(), "fetching notices must not outlive the fetch")

	// Finished is terminal, not cleared: the queue survives for /queue.
	queue, current, _ := s.Queue()
	assert.Len(t, queue, 3)
	assert.Equal(t, 2, current)
}

func TestAdvanceAndRetreatMoveThePointer(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	s.Pause(ctx) // keep the loop out of the way
	s.Enqueue(testTracks(3)...)

	_, current, _ := s.Queue()
	assert.Equal(t, 0, current)

	s.Retreat(ctx) // no-op at the head
	_, current, _ = s.Queue()
	assert.Equal(t, 0, current)

	s.Advance(ctx)
	s.Advance(ctx)
	_, current, _ = s.Queue()
	assert.Equal(t, 2, current)

	// Advancing past the end reports finished and stays put.
	s.Advance(ctx)
	_, current, _ = s.Queue()
	assert.Equal(t, 2, current)
	assert.Contains(t, f.presenter.lastStatus(), "Queue finished")

	s.Retreat(ctx)
	_, current, _ = s.Queue()
	assert.Equal(t, 1, current)
}

func TestStopClearsSessionAndStore(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	s.Pause(ctx)
	s.Enqueue(testTracks(2)...)
	s.Stop(ctx)

	queue, current, _ := s.Queue()
	assert.Empty(t, queue)
	assert.Equal(t, -1, current)
	assert.Nil(t, f.store.Peek(testUser))

	// The next reference starts from scratch.
	fresh := f.store.GetOrCreate(testUser, testChat)
	assert.NotSame(t, s, fresh)
	queue, current, paused := fresh.Queue()
	assert.Empty(t, queue)
	assert.Equal(t, -1, current)
	assert.False(t, paused)
}

func TestStopIsSilentForStaleSession(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	s.Stop(ctx)
	replacement := f.store.GetOrCreate(testUser, testChat)

	// A second Stop on the stale session must not evict the replacement.
	s.Stop(ctx)
	assert.Same(t, replacement, f.store.Peek(testUser))
}

func TestPauseBlocksAutoContinue(t *testing.T) {
	f := newFixture()
	block := make(chan struct{})
	f.resolver.blockFetch = block

	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	s.PlayTracks(ctx, testTracks(2))
	require.Eventually(t, func() bool {
		return f.resolver.fetchCount() == 1
	}, waitFor, tick)

	s.Pause(ctx)
	close(block)

	// The in-flight track still goes out, but nothing follows it.
	require.Eventually(t, func() bool {
		return len(f.presenter.sentTitles()) == 1
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"Track 0"}, f.presenter.sentTitles())
	assert.True(t, s.Paused())

	// Resume continues with the next track, never resending the first.
	s.Resume(ctx)
	require.Eventually(t, func() bool {
		return len(f.presenter.sentTitles()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"Track 0", "Track 1"}, f.presenter.sentTitles())
}

func TestFetchFailureHaltsWithoutAdvancing(t *testing.T) {
	f := newFixture()
	f.resolver.fetchErr = map[string]error{
		"id0": &resolver.FetchError{Ref: "id0", Err: fmt.Errorf("boom")},
	}

	s := f.store.GetOrCreate(testUser, testChat)
	s.PlayTracks(context.Background(), testTracks(2))

	require.Eventually(t, func() bool {
		return strings.Contains(f.presenter.lastStatus(), "Failed to fetch")
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	// Nothing was sent and the pointer stayed on the failed track.
	assert.Empty(t, f.presenter.sentTitles())
	queue, current, _ := s.Queue()
	assert.Len(t, queue, 2)
	assert.Equal(t, 0, current)
	assert.True(t, f.presenter.transientsDismissed())
}

func TestPlayTrackAppendsWhileActive(t *testing.T) {
	f := newFixture()
	block := make(chan struct{})
	f.resolver.blockFetch = block

	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	out := s.PlayTrack(ctx, testTrackN(0))
	assert.True(t, out.Started)
	require.Eventually(t, func() bool {
		return f.resolver.fetchCount() == 1
	}, waitFor, tick)

	// With the append policy a second /play joins the queue.
	out = s.PlayTrack(ctx, testTrackN(1))
	assert.False(t, out.Started)

	close(block)
	require.Eventually(t, func() bool {
		return len(f.presenter.sentTitles()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"Track 0", "Track 1"}, f.presenter.sentTitles())
}

func TestPlayTrackReplacePolicy(t *testing.T) {
	f := newFixture()
	f.store.deps.Cfg.PlayPolicy = "replace"

	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()

	s.Pause(ctx)
	s.Enqueue(testTracks(3)...)
	s.PlayTrack(ctx, testTrackN(9))

	queue, current, _ := s.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, "id9", queue[0].ID)
	assert.Equal(t, 0, current)
}

func TestRetreatOnEmptySessionIsNoOp(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)

	s.Retreat(context.Background())

	queue, current, _ := s.Queue()
	assert.Empty(t, queue)
	assert.Equal(t, -1, current)
}

func TestTwoTrackWalkthrough(t *testing.T) {
	f := newFixture()
	s := f.store.GetOrCreate(testUser, testChat)

	tracks := []model.Track{
		{ID: "a", Title: "A", URL: "https://example.test/a", Duration: 30},
		{ID: "b", Title: "B", URL: "https://example.test/b", Duration: 90},
	}
	s.PlayTracks(context.Background(), tracks)

	require.Eventually(t, func() bool {
		return strings.Contains(f.presenter.lastStatus(), "Queue finished")
	}, waitFor, tick)

	// Both tracks went through the status display with their durations.
	statuses := strings.Join(func() []string {
		f.presenter.mu.Lock()
		defer f.presenter.mu.Unlock()
		return append([]string(nil), f.presenter.statuses...)
	}(), "\n")
	assert.Contains(t, statuses, "▶️ A")
	assert.Contains(t, statuses, "00:30")
	assert.Contains(t, statuses, "▶️ B")
	assert.Contains(t, statuses, "01:30")

	_, current, _ := s.Queue()
	assert.Equal(t, 1, current)
}

func TestPlayNowExpandsPlaylists(t *testing.T) {
	f := newFixture()
	f.resolver.playlist = testTracks(4)

	s := f.store.GetOrCreate(testUser, testChat)
	ctx := context.Background()
	s.Pause(ctx)
	s.Enqueue(testTrackN(8)) // replaced wholesale below

	out, err := s.PlayNow(ctx, "https://www.youtube.com/playlist?list=PLx")
	require.NoError(t, err)
	assert.True(t, out.Playlist)
	assert.Equal(t, 4, out.Added)

	queue, current, _ := s.Queue()
	require.Len(t, queue, 4)
	assert.Equal(t, "id0", queue[0].ID)
	assert.Equal(t, 0, current)
}
