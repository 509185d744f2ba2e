package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "exodus", cmd.Use)
	assert.Contains(t, cmd.Long, "transition protocol")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"begin", "step", "run", "status", "verify", "seal", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestBeginCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	beginCmd, _, err := cmd.Find([]string{"begin"})
	require.NoError(t, err)

	dbFlag := beginCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is required, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)

	tokenFlag := beginCmd.Flags().Lookup("token")
	require.NotNil(t, tokenFlag)
}

func TestStepCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	stepCmd, _, err := cmd.Find([]string{"step"})
	require.NoError(t, err)

	dbFlag := stepCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)

	tokenFlag := stepCmd.Flags().Lookup("token")
	require.NotNil(t, tokenFlag)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	dbFlag := runCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)

	manifestFlag := runCmd.Flags().Lookup("manifest")
	require.NotNil(t, manifestFlag)
}

func TestVerifyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)

	dbFlag := verifyCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)

	tokenFlag := verifyCmd.Flags().Lookup("token")
	require.NotNil(t, tokenFlag)
}

func TestSealCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	sealCmd, _, err := cmd.Find([]string{"seal"})
	require.NoError(t, err)

	manifestFlag := sealCmd.Flags().Lookup("manifest")
	require.NotNil(t, manifestFlag)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "seal"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
