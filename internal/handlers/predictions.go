package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/statstack/predictions-api/internal/logic"
)

type weekQuery struct {
	Season int `validate:"min=1920,max=2100"`
	Week   int `validate:"min=1,max=25"`
}

// predictionError maps service errors onto status codes. Internal failures
// are logged and never shown to the caller.
func (h *Handler) predictionError(w http.ResponseWriter, err error, keysAndValues ...interface{}) {
	switch {
	case errors.Is(err, logic.ErrNotFound), errors.Is(err, logic.ErrVersionNotFound):
		h.errorResponse(w, http.StatusNotFound, err.Error())
	case logic.IsClientError(err):
		h.errorResponse(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorw("Prediction request failed", append(keysAndValues, "error", err)...)
		h.errorResponse(w, http.StatusInternalServerError, "Prediction failed")
	}
}

func parseAllowPlayed(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("allow_played")
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// GetGamePrediction predicts a single upcoming game
// @Summary Predict Game
// @Description Winner probability, spread and total for one game. Completed games need allow_played=true and include the actual result.
// @Tags Predictions
// @Produce json
// @Param game_id query string true "Game ID"
// @Param allow_played query bool false "Allow diagnostic predictions of completed games"
// @Success 200 {object} models.MatchPrediction
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /predictions/game [get]
func (h *Handler) GetGamePrediction(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		h.errorResponse(w, http.StatusBadRequest, "game_id query parameter is required")
		return
	}
	allowPlayed, err := parseAllowPlayed(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "allow_played must be a boolean")
		return
	}

	pred, err := h.prediction.PredictMatch(r.Context(), gameID, allowPlayed)
	if err != nil {
		h.predictionError(w, err, "game_id", gameID)
		return
	}

	h.jsonResponse(w, http.StatusOK, pred)
}

// GetWeekPredictions predicts every eligible game of a week
// @Summary Predict Week
// @Description Per-game predictions for a season week. Games that cannot be predicted carry an error instead.
// @Tags Predictions
// @Produce json
// @Param season query int true "Season"
// @Param week query int true "Week"
// @Param allow_played query bool false "Include completed games"
// @Param simulate_season query int false "Replay a past week: season"
// @Param simulate_week query int false "Replay a past week: week"
// @Success 200 {object} models.WeekPredictions
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /predictions/week [get]
func (h *Handler) GetWeekPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawSeason, rawWeek := q.Get("season"), q.Get("week")
	if rawSeason == "" || rawWeek == "" {
		h.errorResponse(w, http.StatusBadRequest, "season and week query parameters are required")
		return
	}
	season, errSeason := strconv.Atoi(rawSeason)
	week, errWeek := strconv.Atoi(rawWeek)
	if errSeason != nil || errWeek != nil {
		h.errorResponse(w, http.StatusBadRequest, "season and week must be integers")
		return
	}
	if err := h.validator.Struct(weekQuery{Season: season, Week: week}); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "season or week out of range")
		return
	}
	allowPlayed, err := parseAllowPlayed(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "allow_played must be a boolean")
		return
	}

	opts := logic.WeekOptions{
		AllowPlayed: allowPlayed,
		Simulation:  logic.ParseSimulation(q.Get("simulate_season"), q.Get("simulate_week")),
	}
	result, err := h.prediction.PredictWeek(r.Context(), season, week, opts)
	if err != nil {
		h.predictionError(w, err, "season", season, "week", week)
		return
	}

	h.jsonResponse(w, http.StatusOK, result)
}

// GetModelInfo describes the active model version
// @Summary Model Info
// @Tags Predictions
// @Produce json
// @Success 200 {object} models.ModelInfo
// @Failure 500 {object} map[string]string
// @Router /predictions/model-info [get]
func (h *Handler) GetModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.prediction.ModelInfo(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to read model info", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to read model info")
		return
	}
	h.jsonResponse(w, http.StatusOK, info)
}

// GetFeatureImportance ranks the winner model's inputs
// @Summary Feature Importance
// @Tags Predictions
// @Produce json
// @Success 200 {array} models.FeatureImportance
// @Failure 400 {object} map[string]string
// @Router /predictions/feature-importance [get]
func (h *Handler) GetFeatureImportance(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.prediction.FeatureImportance(r.Context())
	if err != nil {
		h.predictionError(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, ranked)
}

// ActivateModel makes a trained version the active one
// @Summary Activate Model Version
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Param version path string true "Model version"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /predictions/models/{version}/activate [post]
func (h *Handler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	if version == "" {
		h.errorResponse(w, http.StatusBadRequest, "version is required")
		return
	}

	if err := h.prediction.ActivateVersion(r.Context(), version); err != nil {
		h.predictionError(w, err, "version", version)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "activated", "version": version})
}

// ReloadModel drops the resident model so the next prediction reloads it
// @Summary Reload Model
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]string
// @Router /predictions/reload [post]
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	h.prediction.Reload()
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// ClearPredictionCache removes every cached prediction
// @Summary Clear Prediction Cache
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /predictions/cache/clear [post]
func (h *Handler) ClearPredictionCache(w http.ResponseWriter, r *http.Request) {
	if err := h.prediction.ClearCache(r.Context()); err != nil {
		h.logger.Errorw("Failed to clear prediction cache", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}
