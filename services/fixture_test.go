package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/repositories/memory"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
	gate   chan struct{}
}

// Publish waits on the gate when one is set, then records the event.
func (p *recordingPublisher) Publish(ctx context.Context, ev realtime.Event) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// hold makes Publish block until the returned release func is called.
func (p *recordingPublisher) hold() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (p *recordingPublisher) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *recordingPublisher) event(i int) realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[i]
}

func (p *recordingPublisher) types() []realtime.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type fixture struct {
	ctx          context.Context
	store        repositories.Store
	publisher    *recordingPublisher
	notifier     *Notifier
	uploader     *storage.MemoryUploader
	metrics      *metrics.Recorder
	tournaments  TournamentService
	participants ParticipantService
	brackets     BracketService
	matches      MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New().Repositories()
	pub := &recordingPublisher{}
	rec := metrics.New()
	uploader := storage.NewMemoryUploader("https://results.example.com")
	notifier := NewNotifier(pub, rec, logger)
	runCtx, stop := context.WithCancel(context.Background())
	go notifier.Run(runCtx)
	t.Cleanup(func() {
		stop()
		<-notifier.Done()
	})

	bracketSvc := NewBracketService(store, notifier, logger)
	return &fixture{
		ctx:          context.Background(),
		store:        store,
		publisher:    pub,
		notifier:     notifier,
		uploader:     uploader,
		metrics:      rec,
		tournaments:  NewTournamentService(store, logger),
		participants: NewParticipantService(store, groups.NewBalancer(rand.New(rand.NewPCG(7, 7))), notifier, rec, logger),
		brackets:     bracketSvc,
		matches:      NewMatchService(store, notifier, NewResultsArchiver(store, bracketSvc, uploader, ""), rec, logger),
	}
}

// setup creates a tournament with its groups and registers n participants
// with distinct regions, so the balancer fills groups round-robin.
func (f *fixture) setup(t *testing.T, numberOfGroups, maxPerGroup, qualifiers, n int) (*models.Tournament, []*models.Participant) {
	t.Helper()
	tour, err := f.tournaments.CreateTournament(f.ctx, CreateTournamentInput{
		Name:                    "Spring Cup",
		NumberOfGroups:          numberOfGroups,
		MaxParticipantsPerGroup: maxPerGroup,
		QualifiersPerGroup:      qualifiers,
	})
	require.NoError(t, err)
	_, err = f.tournaments.CreateGroups(f.ctx, tour.ID)
	require.NoError(t, err)

	ps := make([]*models.Participant, n)
	for i := range ps {
		ps[i], err = f.participants.RegisterParticipant(f.ctx, tour.ID, RegisterParticipantInput{
			Name:   fmt.Sprintf("player-%d", i+1),
			Region: fmt.Sprintf("R%d", i+1),
		})
		require.NoError(t, err)
	}
	return tour, ps
}

// playGroup starts a group match between winner and loser and records 11:5 twice.
func (f *fixture) playGroup(t *testing.T, winner, loser *models.Participant) *models.Match {
	t.Helper()
	m, err := f.matches.StartGroupMatch(f.ctx, *winner.GroupID, []uuid.UUID{winner.ID, loser.ID})
	require.NoError(t, err)
	var res *SetResult
	for i := 0; i < 2; i++ {
		res, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 5})
		require.NoError(t, err)
	}
	require.True(t, res.Completed)
	return res.Match
}

// playBracket records two straight sets for slot 1 (p1Wins) or slot 2.
func (f *fixture) playBracket(t *testing.T, matchID uuid.UUID, p1Wins bool) *SetResult {
	t.Helper()
	in := RecordSetInput{Participant1Points: 11, Participant2Points: 4}
	if !p1Wins {
		in = RecordSetInput{Participant1Points: 4, Participant2Points: 11}
	}
	var res *SetResult
	var err error
	for i := 0; i < 2; i++ {
		res, err = f.matches.RecordBracketSet(f.ctx, matchID, in)
		require.NoError(t, err)
	}
	require.True(t, res.Completed)
	return res
}

// flush waits until every queued notification reached the publisher.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.notifier.Flush(ctx))
}

func (f *fixture) participant(t *testing.T, id uuid.UUID) *models.Participant {
	t.Helper()
	p, err := f.store.Participants.GetByID(f.ctx, nil, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) match(t *testing.T, id uuid.UUID) *models.Match {
	t.Helper()
	m, err := f.store.Matches.GetByID(f.ctx, nil, id)
	require.NoError(t, err)
	return m
}

func (f *fixture) tournament(t *testing.T, id uuid.UUID) *models.Tournament {
	t.Helper()
	tour, err := f.store.Tournaments.GetByID(f.ctx, nil, id)
	require.NoError(t, err)
	return tour
}

// counter sums every series of a counter family in the fixture's registry.
func (f *fixture) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	sum := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
