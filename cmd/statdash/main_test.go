package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/statdash/internal/cli"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		assert.NotNil(t, root)
		assert.Equal(t, "statdash", root.Use)
	})
}

func TestRun(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvLogLevel, "error")
	t.Cleanup(config.ResetGlobalConfigForTest)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "encode permalink", args: []string{"permalink", "encode", "--view", "10"}, want: 0},
		{name: "unknown command", args: []string{"nope"}, want: 1},
		{name: "unknown view", args: []string{"permalink", "encode", "--view", "7"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(context.Background(), tt.args))
		})
	}
}
