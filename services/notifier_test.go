package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDropsWhenQueueIsFull(t *testing.T) {
	pub := &recordingPublisher{}
	rec := metrics.New()
	n := newNotifier(pub, rec, slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	tournamentID := uuid.New()

	// Run is not started yet, so only the first event fits.
	n.Notify(context.Background(),
		realtime.Event{Type: realtime.EventGroupUpdated, TournamentID: tournamentID},
		realtime.Event{Type: realtime.EventMatchUpdated, TournamentID: tournamentID},
		realtime.Event{Type: realtime.EventMatchUpdated, TournamentID: tournamentID},
	)
	series, err := testutil.GatherAndCount(rec.Registry(), "tournament_notifications_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series, "two drops of one event type")

	ctx, stop := context.WithCancel(context.Background())
	go n.Run(ctx)
	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Flush(flushCtx))
	stop()
	<-n.Done()

	assert.Equal(t, []realtime.EventType{realtime.EventGroupUpdated}, pub.types())
	assert.False(t, pub.event(0).OccurredAt.IsZero())
}

func TestNotifierFlushHonoursDeadline(t *testing.T) {
	pub := &recordingPublisher{}
	release := pub.hold()
	defer release()
	n := newNotifier(pub, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 4)

	ctx, stop := context.WithCancel(context.Background())
	defer func() {
		stop()
		<-n.Done()
	}()
	go n.Run(ctx)
	n.Notify(context.Background(), realtime.Event{Type: realtime.EventGroupUpdated})

	flushCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Flush(flushCtx), context.DeadlineExceeded)
}
