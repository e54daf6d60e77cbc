package directory

import "strings"

// Filter returns the providers matching query in their original order. Name,
// group id and email match case-insensitively; phone matches as typed. A
// provider without a group id never matches on it. An empty query matches
// everything.
func Filter(providers []Provider, query string) []Provider {
	out := make([]Provider, 0, len(providers))
	if query == "" {
		return append(out, providers...)
	}
	lq := strings.ToLower(query)
	for _, p := range providers {
		if matches(p, query, lq) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p Provider, query, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(p.ProviderName), lowerQuery) {
		return true
	}
	if p.EhrGroupID != nil && strings.Contains(strings.ToLower(*p.EhrGroupID), lowerQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(p.ContactEmail), lowerQuery) {
		return true
	}
	return strings.Contains(p.ContactPhone, query)
}
