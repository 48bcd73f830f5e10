package users

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ParseCSV reads rows with a header line. username is required; id, email, role and
// password columns are optional.
func ParseCSV(r io.Reader) ([]NewUser, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["username"]; !ok {
		return nil, errors.New("missing column: username")
	}
	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var out []NewUser
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, NewUser{
			ID:       get(rec, "id"),
			Username: get(rec, "username"),
			Email:    get(rec, "email"),
			Role:     get(rec, "role"),
			Password: get(rec, "password"),
		})
	}
	return out, nil
}
