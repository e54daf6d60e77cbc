package directory

import "net/url"

// FormPath is the create/edit form route.
const FormPath = "/providers/form"

type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// FormTarget says which form a route opens.
type FormTarget struct {
	Mode  FormMode `json:"mode"`
	ID    string   `json:"id,omitempty"`
	Route string   `json:"route"`
}

// FormRoute returns the form route for id, or the create route when id is
// empty.
func FormRoute(id string) string {
	if id == "" {
		return FormPath
	}
	return FormPath + "?" + url.Values{"id": {id}}.Encode()
}

// ParseFormRoute reads the form mode back from route query values.
func ParseFormRoute(values url.Values) FormTarget {
	id := values.Get("id")
	if id == "" {
		return FormTarget{Mode: FormCreate, Route: FormPath}
	}
	return FormTarget{Mode: FormEdit, ID: id, Route: FormRoute(id)}
}
