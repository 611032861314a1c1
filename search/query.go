package search

import (
	"strconv"
	"strings"
)

// Query represents structured transcript search parameters. It decouples the
// raw operator input from the index engine requirements.
type Query struct {
	RawInput      string // The original query string
	Terms         string // The actual text to search in Bluge
	ParticipantID string // Restrict to one participant's transcript
	Role          string // Restrict to one turn role
	Limit         int    // Pagination: number of results
	Page          int    // Zero-based result page
}

// ParseQuery parses a raw string with command-line style arguments.
// Example: payment issues --participant p-42 --role user --limit 5
func ParseQuery(input string) *Query {
	query := &Query{
		RawInput: input,
		Limit:    10,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "participant":
				query.ParticipantID = val
			case "role":
				query.Role = val
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			case "page":
				if page, err := strconv.Atoi(val); err == nil && page >= 0 {
					query.Page = page
				}
			}
			i++
			continue
		}

		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
