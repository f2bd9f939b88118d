package cmd

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "validate", "defaults"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestRunCmd_FlagDefaults(t *testing.T) {
	// GIVEN the registered run flags
	flags := runCmd.Flags()

	// THEN run-control flags default to "not set" so the file values apply
	tests := []struct {
		name string
		want string
	}{
		{"seed", "42"},
		{"replications", "0"},
		{"run-time", "0"},
		{"warmup", "0"},
		{"workers", "0"},
		{"confidence", "0.95"},
		{"ci-method", "normal"},
		{"output", "table"},
		{"trace", "none"},
	}
	for _, tt := range tests {
		f := flags.Lookup(tt.name)
		require.NotNil(t, f, "flag --%s must be registered", tt.name)
		assert.Equal(t, tt.want, f.DefValue, "--%s default", tt.name)
	}

	logFlag := rootCmd.PersistentFlags().Lookup("log")
	require.NotNil(t, logFlag)
	assert.Equal(t, "error", logFlag.DefValue)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
