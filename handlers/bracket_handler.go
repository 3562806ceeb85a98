package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bs services.BracketService) *BracketHandler {
	return &BracketHandler{
		bracketService: bs,
	}
}

// InitializeFinals godoc
// @Summary Сформировать сетку плей-офф
// @Tags finals
// @Description Посев: все первые места, затем все вторые и т.д.
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 201 {object} services.BracketView
// @Failure 409 {object} map[string]string "Групповой этап не завершен / сетка уже есть"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/finals [post]
func (h *BracketHandler) InitializeFinals(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idFromURL(r, "tournamentID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	bracket, err := h.bracketService.InitializeFinals(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, bracket, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracket godoc
// @Summary Сетка плей-офф по раундам
// @Tags finals
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string "Сетка еще не сформирована"
// @Router /tournaments/{tournamentID}/bracket [get]
func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idFromURL(r, "tournamentID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, bracket, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetPodium godoc
// @Summary Топ-4 турнира
// @Tags finals
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} services.Podium
// @Failure 404 {object} map[string]string
// @Router /tournaments/{tournamentID}/podium [get]
func (h *BracketHandler) GetPodium(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idFromURL(r, "tournamentID")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	podium, err := h.bracketService.GetPodium(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, podium, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
