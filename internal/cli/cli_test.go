package cli_test

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/cli"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/server"
)

const fixtureChart = `{"title":%q,"data":{"values":[` +
	`{"d":"2021-03-01","n":10},{"d":"2021-03-02","n":25},{"d":"2021-03-03","n":40}]},` +
	`"mark":"line","encoding":{"x":{"field":"d","type":"temporal"},"y":{"field":"n","title":"cases"}}}`

// setupCLITest isolates the config directory and resets global state.
func setupCLITest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvLogLevel, "error")
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

func noEnv(string) (string, bool) { return "", false }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmdWithEnv("test", noEnv)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeChart(t *testing.T, dir, rel, title string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(fixtureChart, title)), 0o600))
}

// newBackend serves chart fixtures for every built-in view.
func newBackend(t *testing.T, opts ...server.Option) (*server.Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	writeChart(t, dir, "api/country/graph.json", "country")
	writeChart(t, dir, "api/state/graph.json", "state fallback")
	writeChart(t, dir, "api/state/graph/TX_C.json", "texas cumulative")
	writeChart(t, dir, "api/state/composite.json", "composite")
	writeChart(t, dir, "api/county/graph.json", "county")

	srv := server.New(dir, catalog.Default(), zerolog.Nop(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestRootCmd_Commands(t *testing.T) {
	root := cli.NewRootCmdWithEnv("1.2.3", noEnv)
	assert.Equal(t, "statdash", root.Use)
	assert.Equal(t, "1.2.3", root.Version)

	for _, name := range []string{"view", "fetch", "export", "permalink", "editor", "serve", "config"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"debug", "config", "api-url", "skip-version-check"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCmd_SkipVersionCheckEnv(t *testing.T) {
	root := cli.NewRootCmdWithEnv("test", func(key string) (string, bool) {
		return "1", key == cli.EnvSkipVersionCheck
	})
	assert.Equal(t, "true", root.PersistentFlags().Lookup("skip-version-check").DefValue)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	setupCLITest(t)
	_, err := execute(t, "--api-url", "not a url", "permalink", "encode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}
