package schemas

import (
	"time"

	"github.com/xkilldash9x/authsim/internal/features"
)

// -- Detection Schemas --

// Prediction is the human-readable verdict attached to a detection.
type Prediction string

const (
	PredictionRobot  Prediction = "Robot"
	PredictionPerson Prediction = "Person"
)

// ImproperThreshold is the score above which a session is flagged as automated.
// A score exactly at the threshold is not improper.
const ImproperThreshold = 0.5

// DetectionRecord is the outcome of a single detection tick. Score lies in [0,1] and
// IsImproper holds exactly when Score > ImproperThreshold. Records are never
// mutated after they are built.
type DetectionRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	UserID     string          `json:"user_id"`
	Model      string          `json:"model"`
	Score      float64         `json:"score"`
	IsImproper bool            `json:"is_improper"`
	Prediction Prediction      `json:"prediction"`
	Features   features.Vector `json:"features"`
}

// Verdict maps a score to its improper flag and prediction label.
func Verdict(score float64) (bool, Prediction) {
	if score > ImproperThreshold {
		return true, PredictionRobot
	}
	return false, PredictionPerson
}
