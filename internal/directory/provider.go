package directory

import "time"

// Provider is the row shown and edited in the directory.
type Provider struct {
	ID            string     `json:"id"`
	ProviderName  string     `json:"provider_name"`
	ProviderType  string     `json:"provider_type"`
	EhrGroupID    *string    `json:"ehr_group_id"`
	ContactEmail  string     `json:"contact_email"`
	ContactPhone  string     `json:"contact_phone"`
	Address       string     `json:"address"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes"`
	EhrID         *string    `json:"ehr_id"`
	EhrTenantID   *string    `json:"ehr_tenant_id"`
	OnboardedDate *time.Time `json:"onboarded_date"`
	LastDataFetch *time.Time `json:"last_data_fetch"`
}
