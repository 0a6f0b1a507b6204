package httpapi

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/eternalmod/internal/core"
)

const (
	defaultLimit = 500
	maxLimit     = 500
)

// Filters narrows an owner's event history.
type Filters struct {
	Types []core.EventType
	Since *time.Time
	Limit int
}

// FilterParams is the optional filter part of a dashboard request body.
// types may be a JSON array or a comma separated string; since may be a unix
// timestamp, an RFC 3339 time or a duration such as "24h".
type FilterParams struct {
	Limit json.Number     `json:"limit,omitempty"`
	Types json.RawMessage `json:"types,omitempty"`
	Since json.RawMessage `json:"since,omitempty"`
}

// ParseFilters validates body filter parameters.
func ParseFilters(p FilterParams) (Filters, error) {
	f := Filters{Limit: defaultLimit}

	if raw := strings.TrimSpace(p.Limit.String()); raw != "" {
		if err := f.setLimit(raw); err != nil {
			return Filters{}, err
		}
	}

	if len(p.Types) > 0 && string(p.Types) != "null" {
		var list []string
		if err := json.Unmarshal(p.Types, &list); err != nil {
			var joined string
			if err := json.Unmarshal(p.Types, &joined); err != nil {
				return Filters{}, errors.New("types must be a list or a comma separated string")
			}
			list = []string{joined}
		}
		if err := f.setTypes(list); err != nil {
			return Filters{}, err
		}
	}

	if len(p.Since) > 0 && string(p.Since) != "null" {
		raw := strings.Trim(string(p.Since), `"`)
		if err := f.setSince(raw); err != nil {
			return Filters{}, err
		}
	}

	return f, nil
}

// ParseQueryFilters parses the same filters from URL query parameters.
func ParseQueryFilters(values url.Values) (Filters, error) {
	f := Filters{Limit: defaultLimit}
	if raw := values.Get("limit"); raw != "" {
		if err := f.setLimit(raw); err != nil {
			return Filters{}, err
		}
	}
	if types := values["types"]; len(types) > 0 {
		if err := f.setTypes(types); err != nil {
			return Filters{}, err
		}
	}
	if raw := values.Get("since"); raw != "" {
		if err := f.setSince(raw); err != nil {
			return Filters{}, err
		}
	}
	return f, nil
}

func (f *Filters) setLimit(raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	f.Limit = n
	return nil
}

func (f *Filters) setTypes(raw []string) error {
	seen := make(map[core.EventType]struct{})
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if part == "all" || part == "*" {
				f.Types = nil
				return nil
			}
			typ := core.EventType(part)
			if !typ.Valid() {
				return errors.New("invalid event type filter")
			}
			if _, ok := seen[typ]; !ok {
				seen[typ] = struct{}{}
				f.Types = append(f.Types, typ)
			}
		}
	}
	return nil
}

func (f *Filters) setSince(raw string) error {
	parsed, err := parseSince(raw)
	if err != nil {
		return err
	}
	f.Since = &parsed
	return nil
}

func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d).UTC(), nil
	}
	return time.Time{}, errors.New("invalid since parameter")
}

// Matches reports whether ev satisfies the filters. Limit is not applied.
func (f Filters) Matches(ev core.Event) bool {
	if len(f.Types) > 0 {
		match := false
		for _, typ := range f.Types {
			if ev.Type == typ {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.Since != nil && ev.Timestamp < f.Since.Unix() {
		return false
	}
	return true
}

// EffectiveLimit returns the row cap to apply.
func (f Filters) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > maxLimit {
		return maxLimit
	}
	return f.Limit
}
