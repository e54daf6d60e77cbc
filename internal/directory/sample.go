package directory

import (
	"strconv"

	"github.com/ehr/providerhub/internal/domain/provider"
)

type sampleRow struct {
	name, kind, group, email, phone, address, status string
}

var sampleRows = []sampleRow{
	{"Sunrise Medical Center", "Hospital", "EHR-GRP-2024-001", "contact@sunrisemed.com", "555-0101", "1200 Sunrise Blvd, Portland, OR 97201", "Active"},
	{"Northwest Health Partners", "Clinic", "NWHP-2023-17", "info@nwhealthpartners.org", "555-0102", "45 Cascade Ave, Seattle, WA 98101", "Active"},
	{"Valley Family Clinic", "Clinic", "EHR-GRP-2024-014", "admin@valleyfamily.com", "555-0103", "310 Orchard Rd, Boise, ID 83702", "Pending"},
	{"Lakeside Pediatrics", "Clinic", "", "office@lakesidepeds.com", "555-0104", "9 Shoreline Dr, Madison, WI 53703", "Pending"},
}

// SampleProviders returns the four demo providers with ids "1" to "4".
func SampleProviders() []Provider {
	out := make([]Provider, 0, len(sampleRows))
	for i, r := range sampleRows {
		p := Provider{
			ID:           strconv.Itoa(i + 1),
			ProviderName: r.name,
			ProviderType: r.kind,
			ContactEmail: r.email,
			ContactPhone: r.phone,
			Address:      r.address,
			Status:       r.status,
		}
		if r.group != "" {
			g := r.group
			p.EhrGroupID = &g
		}
		out = append(out, p)
	}
	return out
}

// SampleInserts returns the demo providers as insert payloads for seeding.
func SampleInserts() []*provider.InsertProvider {
	out := make([]*provider.InsertProvider, 0, len(sampleRows))
	for _, r := range sampleRows {
		addr := r.address
		in := &provider.InsertProvider{
			Name:         r.name,
			ProviderType: r.kind,
			Email:        r.email,
			Phone:        r.phone,
			Address:      &addr,
			Status:       r.status,
		}
		if r.group != "" {
			g := r.group
			in.GroupID = &g
		}
		out = append(out, in)
	}
	return out
}
