package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
)

// VersionPath is the endpoint reporting the backend version.
const VersionPath = "/api/version"

// DefaultVersionConstraint accepts every 1.x backend.
const DefaultVersionConstraint = ">= 1.0.0, < 2.0.0"

// ErrVersionUnavailable is returned when the backend does not expose a version.
var ErrVersionUnavailable = errors.New("backend version unavailable")

// VersionError reports a backend outside the supported range.
type VersionError struct {
	Version    string
	Constraint string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("backend version %s does not satisfy %q", e.Version, e.Constraint)
}

// VersionInfo is the body of the version endpoint.
type VersionInfo struct {
	Version string `json:"version"`
}

// CheckVersion verifies the backend version against constraint and returns the
// reported version.
func (c *Client) CheckVersion(ctx context.Context, constraint string) (string, error) {
	if constraint == "" {
		constraint = DefaultVersionConstraint
	}
	cons, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("parsing version constraint %q: %w", constraint, err)
	}

	body, err := c.Fetch(ctx, VersionPath, "")
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Status == http.StatusNotFound {
			return "", ErrVersionUnavailable
		}
		return "", err
	}

	var info VersionInfo
	if err = json.Unmarshal(body, &info); err != nil || info.Version == "" {
		return "", ErrVersionUnavailable
	}

	v, err := semver.NewVersion(info.Version)
	if err != nil {
		return info.Version, fmt.Errorf("parsing backend version %q: %w", info.Version, err)
	}
	if !cons.Check(v) {
		return info.Version, &VersionError{Version: info.Version, Constraint: constraint}
	}
	return info.Version, nil
}
