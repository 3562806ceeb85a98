package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/tournament-engine/services"
	"github.com/google/uuid"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: ms,
	}
}

type startMatchRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type advanceRequest struct {
	// Пусто: победитель берется из уже завершенного матча.
	WinnerID *uuid.UUID `json:"winner_id,omitempty"`
}

// StartGroupMatch godoc
// @Summary Начать матч группового этапа
// @Tags matches
// @Accept json
// @Produce json
// @Param groupID path string true "Group ID"
// @Param input body startMatchRequest true "Два участника группы"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Нужно ровно два разных участника группы"
// @Failure 409 {object} map[string]string "Групповой этап закрыт / матч уже идет"
// @Security BearerAuth
// @Router /groups/{groupID}/matches [post]
func (h *MatchHandler) StartGroupMatch(w http.ResponseWriter, r *http.Request) {
	groupID, err := idFromURL(r, "groupID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input startMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.StartGroupMatch(r.Context(), groupID, input.ParticipantIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartBracketMatch godoc
// @Summary Перевести матч сетки в статус ongoing
// @Tags finals
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /matches/{matchID}/start [post]
func (h *MatchHandler) StartBracketMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := idFromURL(r, "matchID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	match, err := h.matchService.StartBracketMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordGroupSet godoc
// @Summary Записать сет матча группового этапа
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body services.RecordSetInput true "Очки сета"
// @Success 200 {object} services.SetResult
// @Failure 400 {object} map[string]string "Ничья или отрицательный счет"
// @Failure 409 {object} map[string]string "Матч уже завершен"
// @Security BearerAuth
// @Router /matches/{matchID}/sets [put]
func (h *MatchHandler) RecordGroupSet(w http.ResponseWriter, r *http.Request) {
	h.recordSet(w, r, h.matchService.RecordGroupSet)
}

// RecordBracketSet godoc
// @Summary Записать сет матча плей-офф
// @Tags finals
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body services.RecordSetInput true "Очки сета"
// @Success 200 {object} services.SetResult
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Матч завершен / есть незавершенные матчи"
// @Security BearerAuth
// @Router /finals/matches/{matchID}/sets [put]
func (h *MatchHandler) RecordBracketSet(w http.ResponseWriter, r *http.Request) {
	h.recordSet(w, r, h.matchService.RecordBracketSet)
}

type recordFunc func(ctx context.Context, matchID uuid.UUID, input services.RecordSetInput) (*services.SetResult, error)

func (h *MatchHandler) recordSet(w http.ResponseWriter, r *http.Request, record recordFunc) {
	matchID, err := idFromURL(r, "matchID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input services.RecordSetInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := record(r.Context(), matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Advance godoc
// @Summary Продвинуть победителя матча сетки
// @Tags finals
// @Description Без winner_id повторяет продвижение уже завершенного матча; с winner_id решает матч административно.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param matchID path string true "Match ID"
// @Param input body advanceRequest false "Победитель"
// @Success 200 {object} services.AdvanceResult
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Другой победитель уже записан"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/matches/{matchID}/advance [put]
func (h *MatchHandler) Advance(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idFromURL(r, "tournamentID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	matchID, err := idFromURL(r, "matchID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input advanceRequest
	if hasBody(r) {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	result, err := h.matchService.AdvanceBracketMatch(r.Context(), tournamentID, matchID, input.WinnerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetDetails godoc
// @Summary Детали матча
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} services.MatchDetails
// @Failure 404 {object} map[string]string
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	matchID, err := idFromURL(r, "matchID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	details, err := h.matchService.GetMatchDetails(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, details, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
