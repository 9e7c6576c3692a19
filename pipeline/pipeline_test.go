package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daedaleanai/depbuild/config"
	"github.com/daedaleanai/depbuild/module"
	"github.com/daedaleanai/depbuild/runner"
)

// fakeRunner records commands and simulates git and make on disk.
type fakeRunner struct {
	commands []runner.Command
	// createSourceDir makes a simulated clone contain the source directory.
	createSourceDir bool
	gitErr          error
	makeErr         error
}

func (r *fakeRunner) Run(ctx context.Context, c runner.Command) error {
	r.commands = append(r.commands, c)
	switch filepath.Base(c.Name) {
	case "git":
		if r.gitErr != nil {
			return r.gitErr
		}
		cloneDir := filepath.Join(c.Dir, c.Args[len(c.Args)-1])
		if err := os.MkdirAll(cloneDir, 0755); err != nil {
			return err
		}
		if r.createSourceDir {
			return os.MkdirAll(filepath.Join(cloneDir, "src"), 0755)
		}
	case "make", "gmake":
		if r.makeErr != nil {
			return r.makeErr
		}
		if c.Args[len(c.Args)-1] == "clean" {
			return os.Remove(filepath.Join(c.Dir, "libraylib.a"))
		}
		return os.WriteFile(filepath.Join(c.Dir, "libraylib.a"), []byte("!<arch>\n"), 0644)
	}
	return nil
}

func newTestPipeline(t *testing.T, recipe config.Recipe, r *fakeRunner) *Pipeline {
	t.Helper()
	p, err := New(recipe, t.TempDir(), r)
	require.NoError(t, err)
	return p
}

func TestRunFetchesThenBuilds(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	r := &fakeRunner{createSourceDir: true}
	p := newTestPipeline(t, config.Default(), r)
	require.NoError(t, p.Run(context.Background()))

	want := []runner.Command{
		{
			Name: "git",
			Args: []string{
				"-c", "advice.detachedHead=false",
				"clone", "--depth", "1", "--branch", "5.0",
				"https://github.com/raysan5/raylib.git", "raylib",
			},
			Dir: p.WorkDir,
			Env: []string{"GIT_TERMINAL_PROMPT=0"},
		},
		{
			Name: "make",
			Args: []string{"PLATFORM=PLATFORM_DESKTOP"},
			Dir:  filepath.Join(p.WorkDir, "raylib", "src"),
		},
	}
	if diff := cmp.Diff(want, r.commands); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}

	stamp, ok, err := module.ReadStamp(p.CloneDir())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"libraylib.a"}, stamp.Artifacts)
	assert.Equal(t, "PLATFORM_DESKTOP", stamp.Platform)
	assert.Equal(t, []string{"PLATFORM=PLATFORM_DESKTOP"}, stamp.MakeArgs)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, after)
}

func TestSecondRunFaultsAtFetch(t *testing.T) {
	r := &fakeRunner{createSourceDir: true}
	p := newTestPipeline(t, config.Default(), r)
	require.NoError(t, p.Run(context.Background()))
	r.commands = nil

	err := p.Run(context.Background())
	require.Error(t, err)
	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepFetch, step)
	assert.True(t, errors.Is(err, module.ErrDestinationExists))
	assert.Empty(t, r.commands)
}

func TestFetchFailureSkipsBuild(t *testing.T) {
	cloneErr := errors.New("exit status 128")
	r := &fakeRunner{gitErr: cloneErr}
	p := newTestPipeline(t, config.Default(), r)

	err := p.Run(context.Background())
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepFetch, step)
	assert.True(t, errors.Is(err, cloneErr))
	require.Len(t, r.commands, 1)
	assert.Equal(t, "git", r.commands[0].Name)
}

func TestEnterFaultSkipsMake(t *testing.T) {
	r := &fakeRunner{}
	p := newTestPipeline(t, config.Default(), r)

	err := p.Run(context.Background())
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepEnter, step)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.Len(t, r.commands, 1)
}

func TestBuildFailureLeavesCheckoutWithoutStamp(t *testing.T) {
	r := &fakeRunner{createSourceDir: true, makeErr: errors.New("exit status 2")}
	p := newTestPipeline(t, config.Default(), r)

	err := p.Run(context.Background())
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepBuild, step)
	assert.DirExists(t, p.CloneDir())

	_, ok, err := module.ReadStamp(p.CloneDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedRebuildRemovesStaleStamp(t *testing.T) {
	r := &fakeRunner{createSourceDir: true}
	p := newTestPipeline(t, config.Default(), r)
	require.NoError(t, p.Run(context.Background()))

	r.makeErr = errors.New("exit status 2")
	require.Error(t, p.Build(context.Background()))

	_, ok, err := module.ReadStamp(p.CloneDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCustomLayoutAndPrograms(t *testing.T) {
	recipe := config.Default()
	recipe.Dir = filepath.Join("deps", "raylib")
	recipe.Git = "/usr/bin/git"
	recipe.Make = "gmake"
	recipe.Jobs = 4
	recipe.Vars = map[string]string{"RAYLIB_LIBTYPE": "SHARED"}

	r := &fakeRunner{createSourceDir: true}
	p := newTestPipeline(t, recipe, r)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, r.commands, 2)
	assert.Equal(t, "/usr/bin/git", r.commands[0].Name)
	assert.Equal(t, filepath.Join(p.WorkDir, "deps"), r.commands[0].Dir)
	assert.Equal(t, "raylib", r.commands[0].Args[len(r.commands[0].Args)-1])

	assert.Equal(t, "gmake", r.commands[1].Name)
	assert.Equal(t, []string{"-j4", "PLATFORM=PLATFORM_DESKTOP", "RAYLIB_LIBTYPE=SHARED"}, r.commands[1].Args)
	assert.Equal(t, filepath.Join(p.WorkDir, "deps", "raylib", "src"), r.commands[1].Dir)
}

func TestMakeArgs(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Recipe)
		want   []string
	}{
		{"default", func(r *config.Recipe) {}, []string{"PLATFORM=PLATFORM_DESKTOP"}},
		{"jobs", func(r *config.Recipe) { r.Jobs = 8 }, []string{"-j8", "PLATFORM=PLATFORM_DESKTOP"}},
		{"vars sorted", func(r *config.Recipe) {
			r.Platform = "PLATFORM_WEB"
			r.Vars = map[string]string{"RAYLIB_LIBTYPE": "SHARED", "CC": "clang"}
		}, []string{"PLATFORM=PLATFORM_WEB", "CC=clang", "RAYLIB_LIBTYPE=SHARED"}},
		{"no platform", func(r *config.Recipe) { r.Platform = "" }, []string{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recipe := config.Default()
			test.modify(&recipe)
			if diff := cmp.Diff(test.want, MakeArgs(recipe)); diff != "" {
				t.Errorf("unexpected make args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTimeoutAbortsRun(t *testing.T) {
	recipe := config.Default()
	recipe.Timeout = 10 * time.Millisecond

	p := newTestPipeline(t, recipe, &fakeRunner{})
	p.Runner = blockingRunner{}
	p.Fetcher = module.GitCLI{Runner: p.Runner}

	err := p.Run(context.Background())
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepFetch, step)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, c runner.Command) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestClean(t *testing.T) {
	r := &fakeRunner{createSourceDir: true}
	p := newTestPipeline(t, config.Default(), r)
	require.NoError(t, p.Run(context.Background()))
	r.commands = nil

	require.NoError(t, p.Clean(context.Background(), false))
	require.Len(t, r.commands, 1)
	assert.Equal(t, []string{"PLATFORM=PLATFORM_DESKTOP", "clean"}, r.commands[0].Args)
	assert.NoFileExists(t, filepath.Join(p.BuildDir(), "libraylib.a"))
	_, ok, err := module.ReadStamp(p.CloneDir())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Clean(context.Background(), true))
	assert.NoDirExists(t, p.CloneDir())
	// Nothing left to remove.
	assert.NoError(t, p.Clean(context.Background(), true))

	err = p.Clean(context.Background(), false)
	step, _ := FailedStep(err)
	assert.Equal(t, StepEnter, step)
}

func TestNewFetcher(t *testing.T) {
	recipe := config.Default()
	recipe.Netrc = filepath.Join(t.TempDir(), "netrc")

	fetcher, err := NewFetcher(recipe, &fakeRunner{})
	require.NoError(t, err)
	assert.IsType(t, module.GitCLI{}, fetcher)

	recipe.Fetcher = config.FetcherGoGit
	fetcher, err = NewFetcher(recipe, &fakeRunner{})
	require.NoError(t, err)
	assert.IsType(t, module.GoGit{}, fetcher)

	recipe.Fetcher = config.FetcherArchive
	fetcher, err = NewFetcher(recipe, &fakeRunner{})
	require.NoError(t, err)
	assert.IsType(t, module.Archive{}, fetcher)

	recipe.Fetcher = "svn"
	_, err = NewFetcher(recipe, &fakeRunner{})
	assert.Error(t, err)
}

func TestStepError(t *testing.T) {
	err := &StepError{StepBuild, errors.New("exit status 2")}
	assert.EqualError(t, err, "build step failed: exit status 2")

	_, ok := FailedStep(errors.New("other"))
	assert.False(t, ok)
}
