package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseWithPrecedence_FlagBeatsEnv mirrors the teacher's
// TestOptionsFromFlags/TestOptionsFromEnv pair in cmd/launcher/options_test.go:
// it isn't parallel, since it manipulates the process environment.
func TestParseWithPrecedence_FlagBeatsEnv(t *testing.T) { //nolint:paralleltest
	os.Clearenv()
	require.NoError(t, os.Setenv("OPKG_WORKDIR", "/from-env"))

	flagset := flag.NewFlagSet("opkg test", flag.ContinueOnError)
	common := bindCommonFlags(flagset)

	require.NoError(t, parseWithPrecedence(flagset, []string{"-workdir", "/from-flag"}))
	require.Equal(t, "/from-flag", *common.workDir)
}

func TestParseWithPrecedence_EnvBeatsDefault(t *testing.T) { //nolint:paralleltest
	os.Clearenv()
	require.NoError(t, os.Setenv("OPKG_DEBUG", "true"))

	flagset := flag.NewFlagSet("opkg test", flag.ContinueOnError)
	common := bindCommonFlags(flagset)

	require.NoError(t, parseWithPrecedence(flagset, nil))
	require.True(t, *common.debug)
}

func TestParseWithPrecedence_ConfigFileBeatsDefault(t *testing.T) { //nolint:paralleltest
	os.Clearenv()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "opkg.conf")
	require.NoError(t, os.WriteFile(configPath, []byte("workdir /from-config\n"), 0o644))

	flagset := flag.NewFlagSet("opkg test", flag.ContinueOnError)
	common := bindCommonFlags(flagset)

	require.NoError(t, parseWithPrecedence(flagset, []string{"-config", configPath}))
	require.Equal(t, "/from-config", *common.workDir)
}

func TestWorkspaceRoot_DefaultsToCwd(t *testing.T) {
	t.Parallel()

	flagset := flag.NewFlagSet("opkg test", flag.ContinueOnError)
	common := bindCommonFlags(flagset)
	require.NoError(t, parseWithPrecedence(flagset, nil))

	root, err := common.workspaceRoot()
	require.NoError(t, err)
	require.NotEmpty(t, root)
}

func TestHomeDir_PrefersOpkgHomeEnv(t *testing.T) { //nolint:paralleltest
	os.Clearenv()
	require.NoError(t, os.Setenv("OPKG_HOME", "/custom/home"))

	home, err := homeDir()
	require.NoError(t, err)
	require.Equal(t, "/custom/home", home)
}
