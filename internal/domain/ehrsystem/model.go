package ehrsystem

import (
	"time"

	"github.com/google/uuid"
)

// EhrSystem maps to the ehr_systems table.
type EhrSystem struct {
	ID              uuid.UUID `db:"id" json:"id"`
	EhrName         string    `db:"ehr_name" json:"ehr_name"`
	APIBaseEndpoint *string   `db:"api_base_endpoint" json:"api_base_endpoint"`
	Description     *string   `db:"description" json:"description"`
	IsSupported     bool      `db:"is_supported" json:"is_supported"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	ProviderID      *int64    `db:"provider_id" json:"provider_id"`
}

// InsertEhrSystem is the insert payload. Timestamps are server-set; the id is
// generated unless the caller supplies one.
type InsertEhrSystem struct {
	ID              *uuid.UUID `json:"id,omitempty"`
	EhrName         string     `json:"ehr_name" validate:"required,max=255"`
	APIBaseEndpoint *string    `json:"api_base_endpoint" validate:"omitempty,url"`
	Description     *string    `json:"description"`
	IsSupported     *bool      `json:"is_supported"`
	ProviderID      *int64     `json:"provider_id" validate:"omitempty,gt=0"`
}

func (in *InsertEhrSystem) apply(s *EhrSystem) {
	s.EhrName = in.EhrName
	s.APIBaseEndpoint = in.APIBaseEndpoint
	s.Description = in.Description
	s.IsSupported = true
	if in.IsSupported != nil {
		s.IsSupported = *in.IsSupported
	}
	s.ProviderID = in.ProviderID
}
