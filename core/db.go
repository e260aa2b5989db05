package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated list of fields ("-due_date,title"),
// a leading '-' meaning descending. Fields not in `allowed` are dropped.
func ParseOrdering(s string, allowed ...string) []DBOrdering {
	allow := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allow[f] = struct{}{}
	}

	var ords []DBOrdering
	for _, part := range strings.Split(s, ",") {
		part = CleanString(part, true)
		if part == "" {
			continue
		}
		ord := DBOrdering{Field: strings.TrimPrefix(part, "-"), Ascending: !strings.HasPrefix(part, "-")}
		if _, ok := allow[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	return ords
}
