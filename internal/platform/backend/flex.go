package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// The backend contract drifted between releases: numbers arrive as strings,
// lists as single values, timestamps in several layouts. The flex types below
// decode whatever shape they get and never fail; unusable input is left unset.

var null = []byte("null")

type flexString struct {
	V   string
	Set bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.V, f.Set = s, s != ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		f.V, f.Set = n.String(), true
	}
	return nil
}

type flexFloat struct {
	V   float64
	Set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if v, ok := parseNumber(b); ok {
		f.V, f.Set = v, true
	}
	return nil
}

type flexInt struct {
	V   int64
	Set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if v, ok := parseNumber(b); ok {
		f.V, f.Set = int64(math.Floor(v)), true
	}
	return nil
}

func parseNumber(b []byte) (float64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		return 0, false
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type flexBool struct {
	V   bool
	Set bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		f.V, f.Set = v, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			f.V, f.Set = parsed, true
		}
		return nil
	}
	if n, ok := parseNumber(b); ok {
		f.V, f.Set = n != 0, true
	}
	return nil
}

// flexStrings accepts ["a","b"], "a" or "a, b".
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = compact(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = compact(strings.Split(s, ","))
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime accepts RFC 3339, a bare date, or epoch seconds/milliseconds.
type flexTime struct {
	V   time.Time
	Set bool
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, null) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				f.V, f.Set = t.UTC(), true
				return nil
			}
		}
	}
	if n, ok := parseNumber(b); ok && n > 0 {
		f.V, f.Set = fromEpoch(int64(n)), true
	}
	return nil
}

func (f flexTime) ptr() *time.Time {
	if !f.Set {
		return nil
	}
	t := f.V
	return &t
}

// Values below 1e11 are taken as seconds, anything larger as milliseconds.
func fromEpoch(n int64) time.Time {
	if n < 100_000_000_000 {
		return time.Unix(n, 0).UTC()
	}
	return time.UnixMilli(n).UTC()
}

func firstString(values ...flexString) string {
	for _, v := range values {
		if v.Set {
			return v.V
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...flexFloat) float64 {
	for _, v := range values {
		if v.Set {
			return v.V
		}
	}
	return 0
}

func firstInt(values ...flexInt) int64 {
	for _, v := range values {
		if v.Set {
			return v.V
		}
	}
	return 0
}

func firstBool(values ...flexBool) bool {
	for _, v := range values {
		if v.Set {
			return v.V
		}
	}
	return false
}

func firstTime(values ...flexTime) flexTime {
	for _, v := range values {
		if v.Set {
			return v
		}
	}
	return flexTime{}
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampRating(v float64) float64 {
	return math.Max(0, math.Min(5, v))
}
