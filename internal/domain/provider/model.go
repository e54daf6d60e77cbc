package provider

import (
	"strings"
	"time"

	"github.com/ehr/providerhub/internal/domain/ehrsystem"
	"github.com/ehr/providerhub/internal/domain/fetchhistory"
)

// DefaultStatus is assigned to providers created without a status.
const DefaultStatus = "Pending"

// Provider maps to the healthcare_providers table.
type Provider struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ProviderType string    `db:"provider_type" json:"provider_type"`
	GroupID      *string   `db:"group_id" json:"group_id"`
	ContactName  *string   `db:"contact_name" json:"contact_name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Company      *string   `db:"company" json:"company"`
	Address      *string   `db:"address" json:"address"`
	City         *string   `db:"city" json:"city"`
	State        *string   `db:"state" json:"state"`
	PostalCode   *string   `db:"postal_code" json:"postal_code"`
	Status       string    `db:"status" json:"status"`
	Notes        *string   `db:"notes" json:"notes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// LastDataFetch is derived from data_fetch_history, not a column.
	LastDataFetch *time.Time `db:"-" json:"-"`
}

// InsertProvider is the insert and full-update payload: the row minus id and
// created_at.
type InsertProvider struct {
	Name         string  `json:"name" validate:"required,max=255"`
	ProviderType string  `json:"provider_type" validate:"max=100"`
	GroupID      *string `json:"group_id" validate:"omitempty,min=1,max=100"`
	ContactName  *string `json:"contact_name"`
	Email        string  `json:"email" validate:"required"`
	Phone        string  `json:"phone" validate:"required"`
	Company      *string `json:"company"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	PostalCode   *string `json:"postal_code"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes"`
}

// FullAddress joins the address parts that are set.
func (p *Provider) FullAddress() string {
	var parts []string
	for _, s := range []*string{p.Address, p.City, p.State, p.PostalCode} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	return strings.Join(parts, ", ")
}

func (in *InsertProvider) apply(p *Provider) {
	p.Name = in.Name
	p.ProviderType = in.ProviderType
	p.GroupID = in.GroupID
	p.ContactName = in.ContactName
	p.Email = in.Email
	p.Phone = in.Phone
	p.Company = in.Company
	p.Address = in.Address
	p.City = in.City
	p.State = in.State
	p.PostalCode = in.PostalCode
	p.Status = in.Status
	p.Notes = in.Notes
}

// Snapshot is the document written to object storage on every refresh.
type Snapshot struct {
	ProviderID int64                  `json:"provider_id"`
	FetchedAt  time.Time              `json:"fetched_at"`
	Provider   *Provider              `json:"provider"`
	EhrSystems []*ehrsystem.EhrSystem `json:"ehr_systems"`
}

// RefreshResult is returned by Service.Refresh.
type RefreshResult struct {
	Provider      *Provider           `json:"provider"`
	LastDataFetch time.Time           `json:"last_data_fetch"`
	Fetch         *fetchhistory.Fetch `json:"fetch"`
}
