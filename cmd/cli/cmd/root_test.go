package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/angelospk/subdl/internal/constants"
	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
	"github.com/angelospk/subdl/pkg/core/prompt"
	"github.com/angelospk/subdl/pkg/core/subsource"
	"github.com/angelospk/subdl/pkg/processor"
)

// MockClient is a mock implementation of processor.Catalog using testify/mock
type MockClient struct {
	mock.Mock
}

var _ processor.Catalog = (*MockClient)(nil)

func (m *MockClient) SearchTitles(ctx context.Context, title string, year int) ([]subsource.TitleCandidate, error) {
	args := m.Called(ctx, title, year)
	titles, _ := args.Get(0).([]subsource.TitleCandidate)
	return titles, args.Error(1)
}

func (m *MockClient) ListSubtitles(ctx context.Context, titleID, language string) ([]subsource.SubtitleCandidate, error) {
	args := m.Called(ctx, titleID, language)
	subs, _ := args.Get(0).([]subsource.SubtitleCandidate)
	return subs, args.Error(1)
}

func (m *MockClient) Download(ctx context.Context, subtitleID string) ([]byte, error) {
	args := m.Called(ctx, subtitleID)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockClient) Validate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Helpers --- //

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupCLI isolates global state and installs client as the API client.
// A nil client fails the test if one is created.
func setupCLI(t *testing.T, client *MockClient) afero.Fs {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(constants.APIKeyEnv, "")
	viper.Reset()
	resetFlags(RootCmd)

	fs := afero.NewMemMapFs()
	origFs, origNew, origInteractive := appFs, NewClientFunc, isInteractive
	t.Cleanup(func() {
		appFs, NewClientFunc, isInteractive = origFs, origNew, origInteractive
		viper.Reset()
	})
	appFs = fs
	isInteractive = func() bool { return false }
	NewClientFunc = func(cfg subsource.Config) (processor.Catalog, error) {
		if client == nil {
			t.Fatalf("unexpected client creation")
		}
		assert.NotEmpty(t, cfg.ApiKey, "API key should not be empty when creating client")
		return client, nil
	}
	return fs
}

func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	RootCmd.SetOut(out)
	RootCmd.SetErr(out)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	defer RootCmd.SetArgs([]string{})

	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr), "expected an exit error, got %v", err)
	return exitErr.code
}

// --- Root command --- //

func TestRoot_NoPathNonInteractive(t *testing.T) {
	setupCLI(t, nil)
	_, err := executeCommand(t, "")
	assert.Equal(t, ExitInput, exitCode(t, err))
}

func TestRoot_MissingPath(t *testing.T) {
	setupCLI(t, nil)
	_, err := executeCommand(t, "", "/does/not/exist")
	assert.Equal(t, ExitInput, exitCode(t, err))
}

func TestRoot_NoVideos(t *testing.T) {
	fs := setupCLI(t, nil)
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	_, err := executeCommand(t, "", "/empty", "-y")
	assert.Equal(t, ExitInput, exitCode(t, err))
	assert.Contains(t, err.Error(), "no video files found in /empty")
}

func TestRoot_NoticeWhenNotATerminal(t *testing.T) {
	fs := setupCLI(t, nil)
	require.NoError(t, afero.WriteFile(fs, "/v/Show.S01E01.mkv", nil, 0o644))

	out, err := executeCommand(t, "", "/v", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "not a terminal")

	out, err = executeCommand(t, "", "/v", "--dry-run", "-y")
	require.NoError(t, err)
	assert.NotContains(t, out, "not a terminal")
}

func TestNewCatalog_CancelledKeyPrompt(t *testing.T) {
	setupCLI(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()
	out := &bytes.Buffer{}
	logger, closeLog := newLogger(out)
	defer closeLog()

	_, err := newCatalog(ctx, out, prompt.New(pr, out, false), true, logger)
	assert.ErrorIs(t, err, context.Canceled)

	path, err := configPath()
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is saved when the prompt is cancelled")
}

func TestRoot_UnknownLanguage(t *testing.T) {
	fs := setupCLI(t, nil)
	require.NoError(t, afero.WriteFile(fs, "/v/Movie.2023.mkv", nil, 0o644))

	_, err := executeCommand(t, "", "/v", "--lang", "klingon")
	assert.Equal(t, ExitConfig, exitCode(t, err))
}

func TestRoot_MissingAPIKey(t *testing.T) {
	fs := setupCLI(t, nil)
	require.NoError(t, afero.WriteFile(fs, "/v/Movie.2023.mkv", nil, 0o644))

	_, err := executeCommand(t, "", "/v", "-y")
	assert.Equal(t, ExitConfig, exitCode(t, err))
	assert.Contains(t, err.Error(), constants.APIKeyEnv)
}

func TestRoot_DryRunNeedsNoKey(t *testing.T) {
	fs := setupCLI(t, nil)
	require.NoError(t, afero.WriteFile(fs, "/v/Show.S01E01.mkv", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/v/notes.txt", nil, 0o644))

	out, err := executeCommand(t, "", "/v", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 video file(s)")
	assert.Contains(t, out, "Parsed: Show S01E01")
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "Summary")

	exists, _ := afero.Exists(fs, "/v/Show.S01E01.srt")
	assert.False(t, exists)
}

func TestRoot_DownloadsSubtitle(t *testing.T) {
	client := new(MockClient)
	fs := setupCLI(t, client)
	t.Setenv(constants.APIKeyEnv, "env-key")
	require.NoError(t, afero.WriteFile(fs, "/videos/Great.Movie.2023.1080p.mkv", nil, 0o644))

	client.On("Validate", mock.Anything).Return(nil).Once()
	client.On("SearchTitles", mock.Anything, "Great Movie", 2023).Return([]subsource.TitleCandidate{
		{ID: "1", Title: "Great Movie", ReleaseYear: 2023, MediaType: subsource.MediaMovie},
	}, nil).Once()
	client.On("ListSubtitles", mock.Anything, "1", "indonesian").Return([]subsource.SubtitleCandidate{
		{ID: "9", Language: "Indonesian", ReleaseInfo: []string{"Great.Movie.2023.1080p.WEB"}},
	}, nil).Once()
	client.On("Download", mock.Anything, "9").Return([]byte("1\n00:00:01,000 --> 00:00:02,000\nHalo\n"), nil).Once()

	out, err := executeCommand(t, "", "/videos", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved Great.Movie.2023.1080p.srt")

	data, err := afero.ReadFile(fs, "/videos/Great.Movie.2023.1080p.srt")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Halo")
	client.AssertExpectations(t)
}

func TestRoot_RejectedKey(t *testing.T) {
	client := new(MockClient)
	fs := setupCLI(t, client)
	t.Setenv(constants.APIKeyEnv, "bad-key")
	require.NoError(t, afero.WriteFile(fs, "/v/Movie.2023.mkv", nil, 0o644))

	client.On("Validate", mock.Anything).Return(&coreErrors.AuthError{StatusCode: 401}).Once()

	_, err := executeCommand(t, "", "/v", "-y")
	assert.Equal(t, ExitConfig, exitCode(t, err))
	client.AssertNotCalled(t, "SearchTitles", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoot_Version(t *testing.T) {
	setupCLI(t, nil)
	out, err := executeCommand(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

// --- Subcommands --- //

func TestLogin_SavesKey(t *testing.T) {
	client := new(MockClient)
	setupCLI(t, client)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("language: en\n"), 0o600))

	client.On("Validate", mock.Anything).Return(nil).Once()

	out, err := executeCommand(t, "", "login", "new-key", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "API key verified and saved")

	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "new-key", v.GetString(CfgKeyAPIKey))
	assert.Equal(t, "en", v.GetString(CfgKeyLanguage), "existing settings are kept")
	client.AssertExpectations(t)
}

func TestLogin_ReadsKeyFromInput(t *testing.T) {
	client := new(MockClient)
	setupCLI(t, client)
	cfg := filepath.Join(t.TempDir(), "sub", "config.yaml")

	client.On("Validate", mock.Anything).Return(nil).Once()

	_, err := executeCommand(t, "typed-key\n", "login", "--config", cfg)
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "typed-key", v.GetString(CfgKeyAPIKey))
}

func TestLogin_Rejected(t *testing.T) {
	client := new(MockClient)
	setupCLI(t, client)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	client.On("Validate", mock.Anything).Return(&coreErrors.AuthError{StatusCode: 403}).Once()

	_, err := executeCommand(t, "", "login", "bad", "--config", cfg)
	assert.Equal(t, ExitConfig, exitCode(t, err))
	_, statErr := os.Stat(cfg)
	assert.True(t, os.IsNotExist(statErr), "rejected keys are not stored")
}

func TestLogout(t *testing.T) {
	setupCLI(t, nil)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("subsource:\n  apikey: abc\n  timeout: 30s\nlanguage: en\n"), 0o600))

	out, err := executeCommand(t, "", "logout", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "API key removed")

	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())
	assert.Empty(t, v.GetString(CfgKeyAPIKey))
	assert.Equal(t, "30s", v.GetString(CfgKeyTimeout))
	assert.Equal(t, "en", v.GetString(CfgKeyLanguage))

	out, err = executeCommand(t, "", "logout", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No stored API key found")
}

func TestSearchCommand(t *testing.T) {
	client := new(MockClient)
	setupCLI(t, client)
	t.Setenv(constants.APIKeyEnv, "k")

	client.On("SearchTitles", mock.Anything, "Great Movie", 2023).Return([]subsource.TitleCandidate{
		{ID: "7", Title: "Great Movie 2", ReleaseYear: 2025, MediaType: subsource.MediaMovie},
		{ID: "1", Title: "Great Movie", ReleaseYear: 2023, MediaType: subsource.MediaMovie},
	}, nil).Once()

	out, err := executeCommand(t, "", "search", "Great", "Movie", "--year", "2023")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 titles (showing 2):")
	assert.Less(t, strings.Index(out, "Great Movie "), strings.Index(out, "Great Movie 2"), "exact match listed first")
	client.AssertExpectations(t)
}

func TestSearchCommand_NoKey(t *testing.T) {
	setupCLI(t, nil)
	_, err := executeCommand(t, "", "search", "Anything")
	assert.Equal(t, ExitConfig, exitCode(t, err))
}

func TestParseCommand(t *testing.T) {
	setupCLI(t, nil)
	out, err := executeCommand(t, "", "parse", "Drama.Show.S02E03.720p.HDTV.x264-GRP.mkv", "Great.Movie.2023.1080p.WEB-DL.mkv")
	require.NoError(t, err)
	assert.Contains(t, out, "Drama Show")
	assert.Contains(t, out, "S02E03")
	assert.Contains(t, out, "Great Movie")
	assert.Contains(t, out, "2023")
	assert.Contains(t, out, "Great.Movie.2023.1080p.WEB-DL.srt")
}

func TestCleanPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"/media/movie.mkv", "/media/movie.mkv"},
		{"  '/media/My Movie.mkv'  ", "/media/My Movie.mkv"},
		{`"/media/My Movie.mkv"`, "/media/My Movie.mkv"},
		{`/media/My\ Movie\ \(2023\).mkv`, "/media/My Movie (2023).mkv"},
		{"~/Videos", filepath.Join(home, "Videos")},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanPath(tc.in))
		})
	}
}
