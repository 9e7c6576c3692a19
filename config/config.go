package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/util"
)

// Configuration keys. They double as flag names and, upper-cased with a
// DEPBUILD_ prefix and '-' replaced by '_', as environment variable names.
const (
	KeyURL       = "url"
	KeyRef       = "ref"
	KeyDir       = "dir"
	KeySourceDir = "source-dir"
	KeyPlatform  = "platform"
	KeyVars      = "vars"
	KeyJobs      = "jobs"
	KeyGit       = "git"
	KeyMake      = "make"
	KeyFetcher   = "fetcher"
	KeyTimeout   = "timeout"
	KeyNetrc     = "netrc"
)

const (
	DefaultURL       = "https://github.com/raysan5/raylib.git"
	DefaultRef       = "5.0"
	DefaultDir       = "raylib"
	DefaultSourceDir = "src"
	DefaultPlatform  = "PLATFORM_DESKTOP"
)

// Fetchers.
const (
	FetcherGit     = "git"
	FetcherGoGit   = "go-git"
	FetcherArchive = "archive"
)

const envPrefix = "DEPBUILD"
const configName = "depbuild"
const platformPrefix = "PLATFORM_"

// Recipe describes which source tree to fetch and how to build it.
type Recipe struct {
	URL       string
	Ref       string
	Dir       string
	SourceDir string
	Platform  string
	Vars      map[string]string
	Jobs      int
	Git       string
	Make      string
	Fetcher   string
	Timeout   time.Duration
	Netrc     string
}

// Default returns the recipe used when nothing is configured: raylib 5.0 for the desktop platform.
func Default() Recipe {
	return Recipe{
		URL:       DefaultURL,
		Ref:       DefaultRef,
		Dir:       DefaultDir,
		SourceDir: DefaultSourceDir,
		Platform:  DefaultPlatform,
		Vars:      map[string]string{},
		Git:       "git",
		Make:      "make",
		Fetcher:   FetcherGit,
	}
}

// CloneDir returns the directory the source tree is cloned into.
func (r Recipe) CloneDir(workDir string) string {
	return filepath.Join(workDir, r.Dir)
}

// BuildDir returns the directory make is run in.
func (r Recipe) BuildDir(workDir string) string {
	return filepath.Join(workDir, r.Dir, r.SourceDir)
}

// Validate checks that the recipe can be executed.
func (r Recipe) Validate() error {
	if r.URL == "" {
		return eris.New("no repository url configured")
	}
	if strings.HasPrefix(r.URL, "-") {
		return eris.Errorf("invalid repository url '%s'", r.URL)
	}
	if r.Ref == "" {
		return eris.New("no revision configured")
	}
	if strings.HasPrefix(r.Ref, "-") {
		return eris.Errorf("invalid revision '%s'", r.Ref)
	}
	if !util.IsWithin(r.Dir) {
		return eris.Errorf("clone directory '%s' must be a relative path inside the working directory", r.Dir)
	}
	if r.SourceDir != "." && !util.IsWithin(r.SourceDir) {
		return eris.Errorf("source directory '%s' must be a relative path inside the clone directory", r.SourceDir)
	}
	switch r.Fetcher {
	case FetcherGit, FetcherGoGit, FetcherArchive:
	default:
		return eris.Errorf("unknown fetcher '%s', expected one of '%s', '%s', '%s'", r.Fetcher, FetcherGit, FetcherGoGit, FetcherArchive)
	}
	if r.Jobs < 0 {
		return eris.Errorf("invalid number of jobs %d", r.Jobs)
	}
	if r.Timeout < 0 {
		return eris.Errorf("invalid timeout %s", r.Timeout)
	}
	for key := range r.Vars {
		if key == "" || strings.ContainsAny(key, "= \t") {
			return eris.Errorf("invalid make variable name '%s'", key)
		}
		if key == "PLATFORM" {
			return eris.New("set the make PLATFORM variable through the platform setting")
		}
	}
	return nil
}

// NormalizePlatform turns shorthands like "desktop" or "desktop-sdl" into
// the PLATFORM_* spelling raylib's Makefile expects.
func NormalizePlatform(platform string) string {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return ""
	}
	platform = strings.ToUpper(strings.ReplaceAll(platform, "-", "_"))
	if !strings.HasPrefix(platform, platformPrefix) {
		platform = platformPrefix + platform
	}
	return platform
}

// ConfigDir returns the directory holding the user-wide configuration.
func ConfigDir() (string, error) {
	if dir, ok := os.LookupEnv("DEPBUILD_CONFIG_DIR"); ok && dir != "" {
		return dir, nil
	}

	if xdgConfigHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, configName), nil
	}

	homeDir, err := homedir.Dir()
	if err != nil {
		return "", eris.Wrap(err, "unable to locate the configuration directory")
	}
	return filepath.Join(homeDir, ".config", configName), nil
}

// SetDefaults registers the default recipe with `v`.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyURL, d.URL)
	v.SetDefault(KeyRef, d.Ref)
	v.SetDefault(KeyDir, d.Dir)
	v.SetDefault(KeySourceDir, d.SourceDir)
	v.SetDefault(KeyPlatform, d.Platform)
	v.SetDefault(KeyVars, map[string]string{})
	v.SetDefault(KeyJobs, 0)
	v.SetDefault(KeyGit, d.Git)
	v.SetDefault(KeyMake, d.Make)
	v.SetDefault(KeyFetcher, d.Fetcher)
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyNetrc, "")
}

// Load resolves the recipe from defaults, the configuration file, DEPBUILD_*
// environment variables and any flags already bound to `v`, in increasing
// order of precedence. Without an explicit `configFile`, depbuild.yaml is
// looked up in `workDir` and then in ConfigDir().
func Load(v *viper.Viper, workDir, configFile string) (Recipe, error) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// No SetConfigType: a bare "depbuild" file (the binary) must never match.
		v.SetConfigName(configName)
		v.AddConfigPath(workDir)
		if configDir, err := ConfigDir(); err == nil {
			v.AddConfigPath(configDir)
		} else {
			log.Debug("Unable to find depbuild config directory: %s.\n", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Recipe{}, eris.Wrap(err, "error reading configuration file")
		}
		log.Debug("No configuration file found. Using defaults.\n")
	} else {
		log.Debug("Loaded configuration from '%s'.\n", v.ConfigFileUsed())
	}

	recipe := Recipe{
		URL:       strings.TrimSpace(v.GetString(KeyURL)),
		Ref:       strings.TrimSpace(v.GetString(KeyRef)),
		Dir:       filepath.Clean(v.GetString(KeyDir)),
		SourceDir: filepath.Clean(v.GetString(KeySourceDir)),
		Platform:  NormalizePlatform(v.GetString(KeyPlatform)),
		Vars:      map[string]string{},
		Jobs:      v.GetInt(KeyJobs),
		Git:       v.GetString(KeyGit),
		Make:      v.GetString(KeyMake),
		Fetcher:   v.GetString(KeyFetcher),
		Timeout:   v.GetDuration(KeyTimeout),
		Netrc:     v.GetString(KeyNetrc),
	}
	// Viper lower-cases map keys, make variables are conventionally upper case.
	for key, value := range v.GetStringMapString(KeyVars) {
		recipe.Vars[strings.ToUpper(key)] = value
	}
	if v.GetString(KeyDir) == "" {
		recipe.Dir = ""
	}

	if err := recipe.Validate(); err != nil {
		return Recipe{}, err
	}
	log.Debug("Running with recipe: %+v\n", recipe)
	return recipe, nil
}
