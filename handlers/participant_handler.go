package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: ps,
	}
}

// Register godoc
// @Summary Зарегистрировать участника
// @Tags participants
// @Description Участник попадает в группу, выбранную балансировщиком.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body services.RegisterParticipantInput true "Имя и регион"
// @Success 201 {object} map[string]interface{} "Участник зарегистрирован"
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Failure 409 {object} map[string]string "Имя занято / регистрация закрыта / группы заполнены"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants [post]
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idFromURL(r, "tournamentID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input services.RegisterParticipantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.RegisterParticipant(r.Context(), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AvailableOpponents godoc
// @Summary Соперники, с которыми участник еще не играл
// @Tags participants
// @Produce json
// @Param groupID path string true "Group ID"
// @Param participantId query string true "Participant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Участник не в группе"
// @Router /groups/{groupID}/available [get]
func (h *ParticipantHandler) AvailableOpponents(w http.ResponseWriter, r *http.Request) {
	groupID, err := idFromURL(r, "groupID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	participantID, err := services.ParseID(r.URL.Query().Get("participantId"), "participantId")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	opponents, err := h.participantService.AvailableOpponents(r.Context(), groupID, participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": opponents}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
