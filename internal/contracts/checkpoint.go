package contracts

import "time"

// CronCheckpoint is the resumable progress marker of a batch job.
// Overwritten on each run (upsert by JobType+IndexID), not append-only.
// ⭐ SSOT: 배치 체크포인트 타입은 여기서만
type CronCheckpoint struct {
	JobType   string    `json:"job_type"`
	IndexID   *int64    `json:"index_id,omitempty"` // nil = 전체 인덱스 대상 (global)
	Processed int       `json:"processed_count"`
	Total     int       `json:"total_count"`
	Errors    []string  `json:"errors"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known job types.
const (
	JobTypeIndexUpdate   = "index_update"
	JobTypeDividendCheck = "dividend_check"
)
