// Package permalink serializes the selected view and its control values into a
// shareable query string and parses such strings back into initial state.
//
// The grammar is `id=<view>&<name>=<value>&...`. Names are a restricted
// identifier alphabet and are written as-is; values are percent-encoded.
package permalink

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ViewKey is the query key holding the selected view identifier.
const ViewKey = "id"

// Pair is one named control value, in display order.
type Pair struct {
	Name  string
	Value string
}

// State is the result of decoding a permalink.
type State struct {
	View   int
	Values map[string]string
	// Order lists decoded names in the order they appeared.
	Order []string
}

// Controls resolves control names during Apply.
type Controls interface {
	HasControl(name string) bool
}

// EncodeValue percent-encodes a single value. Spaces become %20 so that links
// match what browsers produce for component encoding.
func EncodeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// EncodePairs joins pairs as name=value with values encoded, preserving order.
func EncodePairs(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(EncodeValue(p.Value))
	}
	return b.String()
}

// Encode serializes a view identifier followed by the control pairs.
func Encode(view int, pairs []Pair) string {
	s := ViewKey + "=" + strconv.Itoa(view)
	if len(pairs) == 0 {
		return s
	}
	return s + "&" + EncodePairs(pairs)
}

// URL returns page with the encoded state as its query.
func URL(page string, view int, pairs []Pair) string {
	return strings.TrimSuffix(page, "?") + "?" + Encode(view, pairs)
}

// Decode parses a query string. It never fails: an absent or unparsable id
// yields view 0, and a pair whose value cannot be decoded is logged and
// skipped without affecting the remaining pairs.
func Decode(query string, log zerolog.Logger) State {
	st := State{Values: map[string]string{}}
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return st
	}

	for _, field := range strings.Split(query, "&") {
		if field == "" {
			continue
		}
		name, raw, _ := strings.Cut(field, "=")
		if name == "" {
			log.Warn().Str("field", field).Msg("permalink field without a name skipped")
			continue
		}

		value, err := url.QueryUnescape(raw)
		if err != nil {
			log.Warn().Err(err).Str("field", name).Msg("permalink value could not be decoded, skipped")
			continue
		}

		if name == ViewKey {
			id, convErr := strconv.Atoi(value)
			if convErr != nil || id < 0 {
				log.Warn().Str("value", value).Msg("permalink view id is not a non-negative integer, using 0")
				st.View = 0
				continue
			}
			st.View = id
			continue
		}

		if _, seen := st.Values[name]; !seen {
			st.Order = append(st.Order, name)
		}
		st.Values[name] = value
	}
	return st
}

// Apply copies decoded values onto values for every name that controls knows.
// Unknown names are ignored and controls absent from the link are untouched.
func (s State) Apply(values map[string]string, controls Controls) {
	for _, name := range s.Order {
		if controls != nil && !controls.HasControl(name) {
			continue
		}
		values[name] = s.Values[name]
	}
}

// Pairs returns the decoded values in their original order.
func (s State) Pairs() []Pair {
	pairs := make([]Pair, 0, len(s.Order))
	for _, name := range s.Order {
		pairs = append(pairs, Pair{Name: name, Value: s.Values[name]})
	}
	return pairs
}
