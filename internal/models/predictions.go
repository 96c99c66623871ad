package models

import "time"

// Prediction is the ensemble output for one match
type Prediction struct {
	HomeWinProbability float64 `json:"home_win_probability"`
	PredictedWinner    string  `json:"predicted_winner"` // "home", "away"
	PredictedSpread    float64 `json:"predicted_spread"`
	PredictedTotal     float64 `json:"predicted_total"`
	PredictedHomeScore float64 `json:"predicted_home_score"`
	PredictedAwayScore float64 `json:"predicted_away_score"`
	Confidence         string  `json:"confidence"` // "low", "medium", "high"
}

// ActualResult is attached to diagnostic predictions of completed matches
type ActualResult struct {
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Winner    string `json:"winner"` // team abbreviation or "TIE"
	Spread    int    `json:"spread"`
	Total     int    `json:"total"`
	Correct   *bool  `json:"correct,omitempty"`
}

// MatchPrediction is the single-match response
type MatchPrediction struct {
	MatchID      string        `json:"match_id"`
	HomeTeam     string        `json:"home_team"`
	AwayTeam     string        `json:"away_team"`
	MatchDate    string        `json:"match_date,omitempty"`
	Prediction   Prediction    `json:"prediction"`
	ModelVersion string        `json:"model_version"`
	Actual       *ActualResult `json:"actual,omitempty"`
}

// WeekEntry holds either a prediction or the reason one could not be made
type WeekEntry struct {
	MatchID      string        `json:"match_id"`
	HomeTeam     string        `json:"home_team"`
	AwayTeam     string        `json:"away_team"`
	MatchDate    string        `json:"match_date,omitempty"`
	Prediction   *Prediction   `json:"prediction,omitempty"`
	ModelVersion string        `json:"model_version,omitempty"`
	Actual       *ActualResult `json:"actual,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// WeekPredictions is the whole-week response
type WeekPredictions struct {
	Season      int         `json:"season"`
	Week        int         `json:"week"`
	Count       int         `json:"count"`
	Predictions []WeekEntry `json:"predictions"`
}

// FeatureImportance ranks a single input column
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// PredictionEvent is the audit row written for every freshly computed prediction
type PredictionEvent struct {
	EventID            string    `json:"event_id"`
	Timestamp          time.Time `json:"timestamp"`
	MatchID            string    `json:"match_id"`
	Season             int       `json:"season"`
	Week               int       `json:"week"`
	HomeTeam           string    `json:"home_team"`
	AwayTeam           string    `json:"away_team"`
	ModelVersion       string    `json:"model_version"`
	Diagnostic         bool      `json:"diagnostic"`
	HomeWinProbability float64   `json:"home_win_probability"`
	PredictedSpread    float64   `json:"predicted_spread"`
	PredictedTotal     float64   `json:"predicted_total"`
	Confidence         string    `json:"confidence"`
	ActualHomeScore    *int      `json:"actual_home_score,omitempty"`
	ActualAwayScore    *int      `json:"actual_away_score,omitempty"`
}
