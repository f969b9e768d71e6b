package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rshade/statdash/internal/catalog"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyAPI      = "api"
	keyPage     = "page"
	keyEditor   = "editor"
	keyExport   = "export"
	keyLogging  = "logging"
	keyViews    = "views"
	keyControls = "controls"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyAPI:      true,
	keyPage:     true,
	keyEditor:   true,
	keyExport:   true,
	keyLogging:  true,
	keyViews:    true,
	keyControls: true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes one section into a copy of the current value, so keys
// the overlay leaves out keep their defaults while the section as a whole is
// replaced. Lists are always replaced outright.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyAPI:
		v := target.API
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.API = v
	case keyPage:
		v := target.Page
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Page = v
	case keyEditor:
		v := target.Editor
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Editor = v
	case keyExport:
		v := target.Export
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Export = v
	case keyLogging:
		v := target.Logging
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyViews:
		var v []catalog.View
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Views = v
	case keyControls:
		var v []catalog.Control
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Controls = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
