package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number, a numeric string, or null. Valid reports
// whether a value was present.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat{Value: n, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*f = flexFloat{Value: n, Valid: true}
	return nil
}

// Ptr returns the value as a pointer, nil when absent.
func (f flexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// stringList decodes either a JSON array of strings or a JSON-encoded string
// holding such an array, e.g. "[\"Yes\",\"No\"]".
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return nil
		}
		if encoded == "" || json.Unmarshal([]byte(encoded), &items) != nil {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			out = append(out, "")
		}
	}
	*l = out
	return nil
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
type APIEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	EndDate     string      `json:"endDate"`
	Liquidity   flexFloat   `json:"liquidity"`
	Volume24hr  flexFloat   `json:"volume24hr"`
	Active      flexBool    `json:"active"`
	Closed      bool        `json:"closed"`
	Markets     []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID               string     `json:"id"`
	Question         string     `json:"question"`
	Slug             string     `json:"slug"`
	Category         string     `json:"category"`
	Description      string     `json:"description"`
	ResolutionSource string     `json:"resolutionSource"`
	EndDate          string     `json:"endDate"`
	Active           flexBool   `json:"active"`
	Closed           bool       `json:"closed"`
	Outcomes         stringList `json:"outcomes"`
	OutcomePrices    stringList `json:"outcomePrices"`
	Liquidity        flexFloat  `json:"liquidity"`
	Volume24hr       flexFloat  `json:"volume24hr"`
}

// Prices pairs outcomes with their prices and returns the Yes/No entries.
func (m *APIMarket) Prices() (yes, no *float64) {
	for i, outcome := range m.Outcomes {
		if i >= len(m.OutcomePrices) {
			break
		}
		p, err := strconv.ParseFloat(m.OutcomePrices[i], 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(outcome) {
		case "yes":
			yes = &p
		case "no":
			no = &p
		}
	}
	return yes, no
}
