// Package schema declares the provider directory tables, their relations and
// uniqueness constraints, and validates insert payloads at the API boundary.
package schema

import "fmt"

// Relation is a foreign key from Column to Table.RefColumn.
type Relation struct {
	Column     string
	References string
	RefColumn  string
	Constraint string
	OnDelete   string
}

// Unique is a single-column uniqueness constraint.
type Unique struct {
	Column     string
	Constraint string
}

// Table describes one persisted table. Constraint names match
// migrations/001_provider_directory.sql so Postgres errors can be mapped back.
type Table struct {
	Name       string
	PrimaryKey string
	// ServerSet lists columns the database fills in; insert payloads must not
	// carry them.
	ServerSet []string
	Unique    []Unique
	Relations []Relation
}

var (
	Users = Table{
		Name:       "users",
		PrimaryKey: "id",
		ServerSet:  []string{"id"},
		Unique:     []Unique{{Column: "username", Constraint: "users_username_key"}},
	}

	HealthcareProviders = Table{
		Name:       "healthcare_providers",
		PrimaryKey: "id",
		ServerSet:  []string{"id", "created_at"},
		Unique:     []Unique{{Column: "group_id", Constraint: "healthcare_providers_group_id_key"}},
	}

	EhrSystems = Table{
		Name:       "ehr_systems",
		PrimaryKey: "id",
		ServerSet:  []string{"created_at", "updated_at"},
		Unique:     []Unique{{Column: "ehr_name", Constraint: "ehr_systems_ehr_name_key"}},
		Relations: []Relation{{
			Column:     "provider_id",
			References: "healthcare_providers",
			RefColumn:  "id",
			Constraint: "ehr_systems_provider_id_fkey",
			OnDelete:   "SET NULL",
		}},
	}

	DataFetchHistory = Table{
		Name:       "data_fetch_history",
		PrimaryKey: "id",
		ServerSet:  []string{"id", "fetch_date"},
		Relations: []Relation{{
			Column:     "provider_id",
			References: "healthcare_providers",
			RefColumn:  "id",
			Constraint: "data_fetch_history_provider_id_fkey",
			OnDelete:   "CASCADE",
		}},
	}
)

// Tables lists every table in dependency order.
var Tables = []Table{Users, HealthcareProviders, EhrSystems, DataFetchHistory}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// DescribeConstraint turns a constraint name reported by Postgres into a
// message naming the offending column. Unknown names are returned unchanged.
func DescribeConstraint(constraint string) string {
	for _, t := range Tables {
		for _, u := range t.Unique {
			if u.Constraint == constraint {
				return fmt.Sprintf("%s.%s must be unique", t.Name, u.Column)
			}
		}
		for _, r := range t.Relations {
			if r.Constraint == constraint {
				return fmt.Sprintf("%s.%s must reference an existing %s row", t.Name, r.Column, r.References)
			}
		}
	}
	return constraint
}
