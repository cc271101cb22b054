package model

import "time"

// Prediction is the classifier verdict for one image. Confidence is the raw
// sigmoid output of the model, not a calibrated probability of IsPothole.
type Prediction struct {
	IsPothole  bool    `json:"is_pothole"`
	Confidence float32 `json:"confidence"`
}

// DetectionEvent is published to the broker after each successful detection.
type DetectionEvent struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Filename   string    `json:"filename"`
	SHA256     string    `json:"sha256"`
	IsPothole  bool      `json:"is_pothole"`
	Confidence float32   `json:"confidence"`
	Cached     bool      `json:"cached"`
	DetectedAt time.Time `json:"detected_at"`
}
