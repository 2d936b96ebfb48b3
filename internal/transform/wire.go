// Package transform maps external records (API payloads with French field
// names, stored rows, ICS occurrences) into the flat shapes the agenda and
// the dashboard consume.
//
// Transformers never fail: absent optional fields get defaults, malformed
// values come out as zero values. Validation happens upstream.
package transform

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// WireTime decodes the date shapes found in API payloads: RFC 3339
// strings, "2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
// "20060102" and epoch milliseconds. Epoch values come as a JSON number
// or as a string of at least 10 digits; shorter digit strings are read as
// "20060102" or rejected. Epoch values outside years 1 to 9999 are
// rejected. Anything else, null included, decodes to the zero time.
type WireTime struct {
	time.Time
}

// Location used for wire values that carry no offset.
var WireLocation = time.Local

var wireLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"20060102",
}

// minEpochDigits keeps compact dates such as "20261019" from being read
// as milliseconds after 1970-01-01.
const minEpochDigits = 10

var (
	minEpochMillis = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxEpochMillis = time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()
)

// epochMillis converts ms to a time, or the zero time when ms is not a
// finite value within the accepted range.
func epochMillis(ms float64) time.Time {
	if math.IsNaN(ms) || ms < float64(minEpochMillis) || ms > float64(maxEpochMillis) {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

func (w *WireTime) UnmarshalJSON(data []byte) error {
	w.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		w.Time = ParseWireTime(s)
		return nil
	}
	if ms, err := strconv.ParseFloat(string(data), 64); err == nil {
		w.Time = epochMillis(ms)
	}
	return nil
}

func (w WireTime) MarshalJSON() ([]byte, error) {
	if w.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(w.Time)
}

// ParseWireTime parses s with the accepted layouts; zero time if none fit.
func ParseWireTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if len(s) >= minEpochDigits {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochMillis(float64(ms))
		}
	}
	for _, layout := range wireLayouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, WireLocation); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WireParty is a party as sent by the API ("partie").
type WireParty struct {
	ID      string  `json:"id"`
	Nom     string  `json:"nom"`
	Qualite string  `json:"qualite"`
	Avocat  *string `json:"avocat"`
}

// WireCase is a case as sent by the API ("affaire").
type WireCase struct {
	ID           string      `json:"id"`
	Reference    string      `json:"reference"`
	Intitule     string      `json:"intitule"`
	Juridiction  string      `json:"juridiction"`
	Chambre      *string     `json:"chambre"`
	Statut       string      `json:"statut"`
	DateDecision WireTime    `json:"dateDecision"`
	DelaiRecours int         `json:"delaiRecours"`
	Parties      []WireParty `json:"parties"`
}

// WireHearing is a hearing as sent by the API ("audience").
type WireHearing struct {
	ID           string   `json:"id"`
	DateAudience WireTime `json:"dateAudience"`
	Statut       string   `json:"statut"`
	Salle        *string  `json:"salle"`
	Notes        *string  `json:"notes"`
	Affaire      WireCase `json:"affaire"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
