package handler

import (
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	guards             Guards
}

func NewLeaderboardHandler(ls *service.LeaderboardService, guards Guards) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls, guards: guards}
}

// RegisterRoutes mounts under /api/leaderboard.
func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(h.guards.Required).Get("/me", h.me)
}

func leaderboardParams(r *http.Request) service.LeaderboardParams {
	q := r.URL.Query()
	return service.LeaderboardParams{
		TestID:    q.Get("testId"),
		SeriesID:  q.Get("seriesId"),
		TimeRange: q.Get("timeRange"),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	}
}

func (h *LeaderboardHandler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.leaderboardService.GetLeaderboard(r.Context(), leaderboardParams(r))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *LeaderboardHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	row, err := h.leaderboardService.GetUserRank(r.Context(), user.ID, leaderboardParams(r))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, row)
}
