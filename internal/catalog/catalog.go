// Package catalog holds the static registry of dashboard views and the controls
// each view reads. It is built once at configuration time and never mutated.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/rshade/statdash/internal/permalink"
)

// ErrUnknownView is returned when a view identifier is not registered.
var ErrUnknownView = errors.New("unknown view")

// Option is one selectable value of a control.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Control is a named input holding a string value.
type Control struct {
	Name    string   `yaml:"name"              json:"name"`
	Param   string   `yaml:"param,omitempty"   json:"param,omitempty"`
	Label   string   `yaml:"label,omitempty"   json:"label,omitempty"`
	Default string   `yaml:"default,omitempty" json:"default,omitempty"`
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// QueryKey returns the API query key for the control.
func (c Control) QueryKey() string {
	if c.Param != "" {
		return c.Param
	}
	return c.Name
}

// DisplayLabel returns the label, or the name when no label is set.
func (c Control) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// OptionLabel returns the label for value, or value itself.
func (c Control) OptionLabel(value string) string {
	for _, o := range c.Options {
		if o.Value == value && o.Label != "" {
			return o.Label
		}
	}
	return value
}

// View is one panel bound to one endpoint and an ordered list of controls.
type View struct {
	ID       int      `yaml:"id"       json:"id"`
	Name     string   `yaml:"name"     json:"name"`
	Title    string   `yaml:"title"    json:"title"`
	Endpoint string   `yaml:"endpoint" json:"endpoint"`
	Controls []string `yaml:"controls" json:"controls"`
}

// Catalog is an immutable view and control registry.
type Catalog struct {
	views    []View
	byID     map[int]int
	controls map[string]Control
}

// New builds a catalog and validates it.
func New(views []View, controls []Control) (*Catalog, error) {
	c := &Catalog{
		views:    append([]View(nil), views...),
		byID:     make(map[int]int, len(views)),
		controls: make(map[string]Control, len(controls)),
	}
	for _, ctl := range controls {
		c.controls[ctl.Name] = ctl
	}
	for i, v := range c.views {
		if _, dup := c.byID[v.ID]; !dup {
			c.byID[v.ID] = i
		}
	}
	if err := c.validate(views, controls); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate(views []View, controls []Control) error {
	var result *multierror.Error

	if len(views) == 0 {
		result = multierror.Append(result, errors.New("catalog has no views"))
	}

	seenControls := map[string]bool{}
	for _, ctl := range controls {
		switch {
		case ctl.Name == "":
			result = multierror.Append(result, errors.New("control with empty name"))
		case strings.ContainsAny(ctl.Name, "&=?# %"):
			result = multierror.Append(result, fmt.Errorf("control %q: name contains reserved characters", ctl.Name))
		case seenControls[ctl.Name]:
			result = multierror.Append(result, fmt.Errorf("control %q defined twice", ctl.Name))
		case ctl.Name == permalink.ViewKey:
			result = multierror.Append(result, fmt.Errorf("control name %q is reserved", ctl.Name))
		}
		seenControls[ctl.Name] = true

		if ctl.Default != "" && len(ctl.Options) > 0 && !hasOption(ctl, ctl.Default) {
			result = multierror.Append(result,
				fmt.Errorf("control %q: default %q is not one of its options", ctl.Name, ctl.Default))
		}
	}

	seenViews := map[int]bool{}
	for _, v := range views {
		if v.ID < 0 {
			result = multierror.Append(result, fmt.Errorf("view %q: id must be non-negative", v.Name))
		}
		if seenViews[v.ID] {
			result = multierror.Append(result, fmt.Errorf("view id %d registered twice", v.ID))
		}
		seenViews[v.ID] = true

		if v.Endpoint == "" {
			result = multierror.Append(result, fmt.Errorf("view %d: empty endpoint", v.ID))
		}
		for _, name := range v.Controls {
			if _, ok := c.controls[name]; !ok {
				result = multierror.Append(result, fmt.Errorf("view %d: unknown control %q", v.ID, name))
			}
		}
	}

	return result.ErrorOrNil()
}

func hasOption(ctl Control, value string) bool {
	for _, o := range ctl.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Views returns the registered views in registration order.
func (c *Catalog) Views() []View {
	return append([]View(nil), c.views...)
}

// View returns the view registered under id.
func (c *Catalog) View(id int) (View, error) {
	i, ok := c.byID[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %d", ErrUnknownView, id)
	}
	return c.views[i], nil
}

// Control returns the named control.
func (c *Catalog) Control(name string) (Control, bool) {
	ctl, ok := c.controls[name]
	return ctl, ok
}

// HasControl reports whether name is a registered control.
func (c *Catalog) HasControl(name string) bool {
	_, ok := c.controls[name]
	return ok
}

// Defaults returns every control's default value keyed by name.
func (c *Catalog) Defaults() map[string]string {
	values := make(map[string]string, len(c.controls))
	for name, ctl := range c.controls {
		values[name] = ctl.Default
	}
	return values
}

// ControlNames returns all control names sorted.
func (c *Catalog) ControlNames() []string {
	names := make([]string, 0, len(c.controls))
	for name := range c.controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pairs returns the view's control values in control order, as used in
// permalinks.
func (c *Catalog) Pairs(v View, values map[string]string) []permalink.Pair {
	pairs := make([]permalink.Pair, 0, len(v.Controls))
	for _, name := range v.Controls {
		pairs = append(pairs, permalink.Pair{Name: name, Value: c.value(name, values)})
	}
	return pairs
}

// Path fills {control} placeholders in the endpoint template.
func (c *Catalog) Path(v View, values map[string]string) string {
	path := v.Endpoint
	for _, name := range v.Controls {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(c.value(name, values)))
		}
	}
	return path
}

// Query returns the API query string for the view: the permalink grammar
// without the view id, keyed by each control's query key. Controls consumed by
// the path template are omitted.
func (c *Catalog) Query(v View, values map[string]string) string {
	pairs := make([]permalink.Pair, 0, len(v.Controls))
	for _, name := range v.Controls {
		if strings.Contains(v.Endpoint, "{"+name+"}") {
			continue
		}
		ctl := c.controls[name]
		pairs = append(pairs, permalink.Pair{Name: ctl.QueryKey(), Value: c.value(name, values)})
	}
	return permalink.EncodePairs(pairs)
}

// Cycle returns the option delta steps away from current, wrapping around.
// Controls without options return current unchanged.
func (c *Catalog) Cycle(name, current string, delta int) string {
	ctl, ok := c.controls[name]
	if !ok || len(ctl.Options) == 0 {
		return current
	}
	idx := 0
	for i, o := range ctl.Options {
		if o.Value == current {
			idx = i
			break
		}
	}
	n := len(ctl.Options)
	idx = ((idx+delta)%n + n) % n
	return ctl.Options[idx].Value
}

func (c *Catalog) value(name string, values map[string]string) string {
	if v, ok := values[name]; ok {
		return v
	}
	return c.controls[name].Default
}
