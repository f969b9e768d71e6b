// Package chart compiles Vega-Lite chart specifications into plottable series
// and renders them to images.
//
// Only the subset the dashboard backend emits is understood: inline
// data.values, a mark, x/y/color encodings, and layer or concat composition.
// Composite charts are flattened into one set of series.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// X axis kinds.
const (
	AxisTemporal     = "temporal"
	AxisQuantitative = "quantitative"
	AxisOrdinal      = "ordinal"
)

// CompileError reports a specification that cannot be turned into a chart.
type CompileError struct {
	Reason string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compiling chart spec: %s: %v", e.Reason, e.Err)
	}
	return "compiling chart spec: " + e.Reason
}

func (e *CompileError) Unwrap() error { return e.Err }

// Point is one plotted value. X holds the numeric position: Unix milliseconds
// for temporal axes, the value for quantitative axes, and the category index
// for ordinal axes.
type Point struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Time  time.Time `json:"time,omitzero"`
	Label string    `json:"label,omitempty"`
}

// Series is a named sequence of points drawn with one mark.
type Series struct {
	Name   string  `json:"name"`
	Mark   string  `json:"mark"`
	Points []Point `json:"points"`
}

// Stats summarizes a series.
type Stats struct {
	Min, Max, Last float64
	Count          int
}

// Stats returns min, max and last value of the series.
func (s Series) Stats() Stats {
	st := Stats{Count: len(s.Points)}
	if st.Count == 0 {
		return st
	}
	st.Min, st.Max = math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		st.Min = math.Min(st.Min, p.Y)
		st.Max = math.Max(st.Max, p.Y)
	}
	st.Last = s.Points[len(s.Points)-1].Y
	return st
}

// Spec is a compiled chart.
type Spec struct {
	Title      string   `json:"title"`
	XAxis      string   `json:"x_axis"`
	XTitle     string   `json:"x_title,omitempty"`
	YTitle     string   `json:"y_title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Series     []Series `json:"series"`
}

type node struct {
	Title    json.RawMessage `json:"title"`
	Data     *data           `json:"data"`
	Mark     json.RawMessage `json:"mark"`
	Encoding *encoding       `json:"encoding"`
	Layer    []node          `json:"layer"`
	Concat   []node          `json:"concat"`
	HConcat  []node          `json:"hconcat"`
	VConcat  []node          `json:"vconcat"`
}

type data struct {
	Values []map[string]any `json:"values"`
}

type encoding struct {
	X     *channel `json:"x"`
	Y     *channel `json:"y"`
	Color *channel `json:"color"`
}

type channel struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// compiler accumulates series while walking the node tree.
type compiler struct {
	spec       *Spec
	categories map[string]int
}

// Compile validates raw and reduces it to series.
func Compile(raw json.RawMessage) (*Spec, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, &CompileError{Reason: "invalid JSON", Err: err}
	}
	if err = schema.Validate(doc); err != nil {
		return nil, &CompileError{Reason: "unsupported specification", Err: err}
	}

	var root node
	if err = json.Unmarshal(raw, &root); err != nil {
		return nil, &CompileError{Reason: "decoding specification", Err: err}
	}

	c := &compiler{
		spec:       &Spec{Title: titleText(root.Title)},
		categories: map[string]int{},
	}
	if err = c.walk(root, nil, "", ""); err != nil {
		return nil, err
	}
	if len(c.spec.Series) == 0 {
		return nil, &CompileError{Reason: "no plottable series (inline data.values with x and y encodings required)"}
	}
	return c.spec, nil
}

func (c *compiler) walk(n node, inherited *data, inheritedMark, prefix string) error {
	d := inherited
	if n.Data != nil {
		d = n.Data
	}
	mark := inheritedMark
	if m := markType(n.Mark); m != "" {
		mark = m
	}

	if n.Encoding != nil && n.Encoding.X != nil && n.Encoding.Y != nil && d != nil {
		if err := c.addSeries(n.Encoding, d, mark, prefix); err != nil {
			return err
		}
	}

	for _, child := range n.Layer {
		if err := c.walk(child, d, mark, prefix); err != nil {
			return err
		}
	}

	for _, group := range [][]node{n.Concat, n.HConcat, n.VConcat} {
		for i, child := range group {
			childPrefix := titleText(child.Title)
			if childPrefix == "" {
				childPrefix = "chart " + strconv.Itoa(i+1)
			}
			if prefix != "" {
				childPrefix = prefix + " / " + childPrefix
			}
			if err := c.walk(child, d, mark, childPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) addSeries(enc *encoding, d *data, mark, prefix string) error {
	axis := axisKind(enc.X.Type)
	if c.spec.XAxis == "" {
		c.spec.XAxis = axis
		c.spec.XTitle = firstNonEmpty(enc.X.Title, enc.X.Field)
		c.spec.YTitle = firstNonEmpty(enc.Y.Title, enc.Y.Field)
	} else if c.spec.XAxis != axis {
		return &CompileError{Reason: fmt.Sprintf("mixed x axis types %s and %s", c.spec.XAxis, axis)}
	}

	if mark == "" {
		mark = "point"
	}
	baseName := firstNonEmpty(enc.Y.Title, enc.Y.Field)

	groups := map[string]int{}
	var series []Series
	for _, row := range d.Values {
		p, ok := c.point(row, enc, axis)
		if !ok {
			continue
		}

		name := baseName
		if enc.Color != nil && enc.Color.Field != "" {
			name = fmt.Sprint(row[enc.Color.Field])
		}
		if prefix != "" {
			name = prefix + ": " + name
		}

		idx, seen := groups[name]
		if !seen {
			idx = len(series)
			groups[name] = idx
			series = append(series, Series{Name: name, Mark: mark})
		}
		series[idx].Points = append(series[idx].Points, p)
	}

	c.spec.Series = append(c.spec.Series, series...)
	return nil
}

func (c *compiler) point(row map[string]any, enc *encoding, axis string) (Point, bool) {
	y, ok := number(row[enc.Y.Field])
	if !ok {
		return Point{}, false
	}
	raw, present := row[enc.X.Field]
	if !present || raw == nil {
		return Point{}, false
	}

	p := Point{Y: y}
	switch axis {
	case AxisTemporal:
		ts, tok := timestamp(raw)
		if !tok {
			return Point{}, false
		}
		p.Time = ts
		p.X = float64(ts.UnixMilli())
	case AxisQuantitative:
		x, xok := number(raw)
		if !xok {
			return Point{}, false
		}
		p.X = x
	default:
		label := fmt.Sprint(raw)
		idx, seen := c.categories[label]
		if !seen {
			idx = len(c.spec.Categories)
			c.categories[label] = idx
			c.spec.Categories = append(c.spec.Categories, label)
		}
		p.X = float64(idx)
		p.Label = label
	}
	return p, true
}

func axisKind(t string) string {
	switch t {
	case AxisTemporal, AxisQuantitative:
		return t
	default:
		return AxisOrdinal
	}
}

func markType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Type
	}
	return ""
}

func titleText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Text json.RawMessage `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil && len(obj.Text) > 0 {
		if json.Unmarshal(obj.Text, &s) == nil {
			return s
		}
		var lines []string
		if json.Unmarshal(obj.Text, &lines) == nil {
			return strings.Join(lines, " ")
		}
	}
	return ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

//nolint:gochecknoglobals // Fixed parse order for temporal values.
var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02"}

func timestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsCompileError reports whether err is a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
