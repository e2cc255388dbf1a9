package dto

import (
	"time"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// SweepRunResponse summarises one expiry sweep.
type SweepRunResponse struct {
	ID         uint                   `json:"id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Expired    int                    `json:"expired"`
	Processed  int                    `json:"processed"`
	Floated    int64                  `json:"floated"`
	Failed     int                    `json:"failed"`
	Details    map[string]interface{} `json:"details"`
}

// NewSweepRunResponse converts a sweep run model into a DTO.
func NewSweepRunResponse(run models.SweepRun) SweepRunResponse {
	details := map[string]interface{}(run.Details)
	if details == nil {
		details = map[string]interface{}{}
	}
	return SweepRunResponse{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Expired:    run.Expired,
		Processed:  run.Processed,
		Floated:    run.Floated,
		Failed:     run.Failed,
		Details:    details,
	}
}

// NewSweepRunResponseSlice converts sweep runs into DTOs.
func NewSweepRunResponseSlice(runs []models.SweepRun) []SweepRunResponse {
	out := make([]SweepRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, NewSweepRunResponse(run))
	}
	return out
}
