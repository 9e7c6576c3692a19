package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daedaleanai/depbuild/config"
)

func loadWithFlags(t *testing.T, args ...string) (config.Recipe, error) {
	t.Helper()
	t.Setenv("DEPBUILD_CONFIG_DIR", t.TempDir())

	v := viper.New()
	flags := pflag.NewFlagSet("depbuild", pflag.ContinueOnError)
	require.NoError(t, addRecipeFlags(flags, v))
	require.NoError(t, flags.Parse(args))
	return config.Load(v, t.TempDir(), "")
}

func TestRecipeFlagDefaults(t *testing.T) {
	recipe, err := loadWithFlags(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), recipe)
}

func TestRecipeFlags(t *testing.T) {
	recipe, err := loadWithFlags(t,
		"--ref", "4.5.0",
		"--dir", "third_party/raylib",
		"--platform", "web",
		"--var", "RAYLIB_LIBTYPE=SHARED",
		"--var", "cc=clang",
		"-j", "8",
		"--fetcher", "go-git",
		"--timeout", "10m",
	)
	require.NoError(t, err)
	assert.Equal(t, "4.5.0", recipe.Ref)
	assert.Equal(t, "third_party/raylib", recipe.Dir)
	assert.Equal(t, "PLATFORM_WEB", recipe.Platform)
	assert.Equal(t, map[string]string{"RAYLIB_LIBTYPE": "SHARED", "CC": "clang"}, recipe.Vars)
	assert.Equal(t, 8, recipe.Jobs)
	assert.Equal(t, config.FetcherGoGit, recipe.Fetcher)
	assert.Equal(t, 10*time.Minute, recipe.Timeout)
}

func TestRecipeFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DEPBUILD_REF", "4.2.0")
	recipe, err := loadWithFlags(t)
	require.NoError(t, err)
	assert.Equal(t, "4.2.0", recipe.Ref)

	recipe, err = loadWithFlags(t, "--ref", "5.0")
	require.NoError(t, err)
	assert.Equal(t, "5.0", recipe.Ref)
}

func TestRecipeFlagsAreValidated(t *testing.T) {
	_, err := loadWithFlags(t, "--dir", "../outside")
	assert.Error(t, err)

	_, err = loadWithFlags(t, "--var", "PLATFORM=PLATFORM_WEB")
	assert.Error(t, err)
}
