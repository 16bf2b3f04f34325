package experiment

import (
	"strings"

	apperrors "csstcli/internal/errors"
)

// ParseIDPairs parses comma separated "name:id" tokens. Names may contain
// commas, so tokens without a colon are joined onto the following token until
// one carries the ":" that ends the pair. The id is everything after the last
// colon.
func ParseIDPairs(tokens []string) (map[string]string, *apperrors.AppError) {
	pairs := make(map[string]string)
	var pending []string

	for _, tok := range tokens {
		pending = append(pending, tok)
		if !strings.Contains(tok, ":") {
			continue
		}
		joined := strings.Join(pending, ",")
		pending = pending[:0]

		i := strings.LastIndex(joined, ":")
		name := strings.TrimSpace(joined[:i])
		id := strings.TrimSpace(joined[i+1:])
		if name == "" || id == "" {
			return nil, apperrors.NewParsingError("id pair needs both a name and an id", nil).
				WithContext("pair", joined)
		}
		pairs[name] = id
	}

	if rest := strings.TrimSpace(strings.Join(pending, ",")); rest != "" {
		return nil, apperrors.NewParsingError("id pair has no id", nil).WithContext("pair", rest)
	}
	return pairs, nil
}
