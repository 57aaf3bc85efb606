package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "migrate", "ingest", "import", "seed", "review", "cards"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "connect-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	ttl := serveCmd.Flags().Lookup("session-ttl")
	require.NotNil(t, ttl)
	assert.Equal(t, "30m0s", ttl.DefValue)
}

func TestImportCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range importCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["members"])
	assert.True(t, names["leaders"])

	require.NotNil(t, importCmd.PersistentFlags().Lookup("org"))
	require.NotNil(t, importCmd.PersistentFlags().Lookup("sheet"))
}

func TestRequiredOrgFlags(t *testing.T) {
	flags := map[string]*pflag.Flag{
		"review": reviewCmd.Flags().Lookup("org"),
		"cards":  cardsCmd.Flags().Lookup("org"),
		"ingest": ingestCmd.Flags().Lookup("org"),
	}
	for name, flag := range flags {
		require.NotNil(t, flag, "%s should have --org", name)
		assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag], name)
	}
}

func TestSeedCommand_MigratesByDefault(t *testing.T) {
	flag := seedCmd.Flags().Lookup("migrate")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}
