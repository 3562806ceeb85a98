package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/google/uuid"
)

const (
	DefaultArchivePrefix  = "results"
	DefaultArchiveTimeout = 10 * time.Second
)

// ResultsSnapshot is the archived document of a completed tournament.
type ResultsSnapshot struct {
	Tournament *models.Tournament `json:"tournament"`
	Bracket    *BracketView       `json:"bracket"`
	Podium     *Podium            `json:"podium"`
	ArchivedAt time.Time          `json:"archived_at"`
}

type ResultsArchiver interface {
	Archive(ctx context.Context, tournamentID uuid.UUID) (*storage.UploadResult, error)
}

type resultsArchiver struct {
	store    repositories.Store
	brackets BracketService
	uploader storage.FileUploader
	prefix   string
	now      func() time.Time
}

func NewResultsArchiver(store repositories.Store, brackets BracketService, uploader storage.FileUploader, prefix string) ResultsArchiver {
	if prefix == "" {
		prefix = DefaultArchivePrefix
	}
	return &resultsArchiver{
		store:    store,
		brackets: brackets,
		uploader: uploader,
		prefix:   prefix,
		now:      time.Now,
	}
}

// ArchiveKey is the object key of a tournament's results under prefix.
func ArchiveKey(prefix string, tournamentID uuid.UUID) string {
	return path.Join(prefix, tournamentID.String()+".json")
}

func (a *resultsArchiver) Archive(ctx context.Context, tournamentID uuid.UUID) (*storage.UploadResult, error) {
	t, err := a.store.Tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	view, err := a.brackets.GetBracket(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ResultsSnapshot{
		Tournament: t,
		Bracket:    view,
		Podium:     podiumOf(view),
		ArchivedAt: a.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode results of tournament %s: %w", tournamentID, err)
	}
	return a.uploader.Upload(ctx, ArchiveKey(a.prefix, tournamentID), "application/json", bytes.NewReader(body))
}
