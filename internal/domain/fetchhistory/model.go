package fetchhistory

import "time"

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Fetch maps to the data_fetch_history table. One row per data pull from a
// provider's EHR system.
type Fetch struct {
	ID         int64     `db:"id" json:"id"`
	ProviderID int64     `db:"provider_id" json:"provider_id"`
	FetchDate  time.Time `db:"fetch_date" json:"fetch_date"`
	S3Location string    `db:"s3_location" json:"s3_location"`
	Status     string    `db:"status" json:"status"`
}

// InsertFetch is the insert payload. id and fetch_date are set by the
// database.
type InsertFetch struct {
	ProviderID int64  `json:"provider_id" validate:"required,gt=0"`
	S3Location string `json:"s3_location" validate:"required"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=completed failed"`
}
