package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/angelospk/subdl/internal/constants"
	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
	"github.com/angelospk/subdl/pkg/core/fileops"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/prompt"
	"github.com/angelospk/subdl/pkg/core/subsource"
	"github.com/angelospk/subdl/pkg/processor"
)

// Define configuration keys
const (
	CfgKeyAPIKey   = "subsource.apikey"
	CfgKeyBaseURL  = "subsource.baseurl"
	CfgKeyTimeout  = "subsource.timeout"
	CfgKeyLanguage = "language"
	CfgKeyDebugDir = "debugdir"
)

// Exit codes
const (
	ExitOK     = 0
	ExitConfig = 1
	ExitInput  = 2
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewClientFunc allows overriding the SubSource client creation for testing.
var NewClientFunc = func(cfg subsource.Config) (processor.Catalog, error) {
	client, err := subsource.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// isInteractive reports whether prompts can reach a person.
var isInteractive = func() bool {
	return prompt.IsTerminal(os.Stdin) && prompt.IsTerminal(os.Stdout)
}

// appFs is the filesystem videos are discovered on and subtitles written to.
var appFs = afero.NewOsFs()

var (
	// Used for flags.
	cfgFile        string
	logFile        string
	language       string
	apiURL         string
	nonInteractive bool
	force          bool
	dryRun         bool
	verbose        bool

	// RootCmd represents the base command when called without any subcommands
	// Exported for use in tests
	RootCmd = &cobra.Command{
		Use:   "subdl [path]",
		Short: "Download matching subtitles for your videos from SubSource.",
		Long: `subdl finds a subtitle for every video in a file or folder, using the
filename to search the SubSource catalog, and saves it as <video>.srt next
to the video.

Without a path you are asked for one; dragging a folder onto the terminal
works. Episode releases that match exactly are downloaded without asking.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runFetch,
	}
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(format string, args ...interface{}) error {
	return &exitError{code: ExitConfig, err: fmt.Errorf(format, args...)}
}

func inputError(format string, args ...interface{}) error {
	return &exitError{code: ExitInput, err: fmt.Errorf(format, args...)}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It returns the process exit code.
func Execute() int {
	err := RootCmd.ExecuteContext(context.Background())
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(RootCmd.ErrOrStderr(), "Error: %v\n", err)
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitConfig
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.subdl/config.yaml)")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file, rotated")
	flags.StringVarP(&language, "lang", "l", constants.DefaultLanguage, "subtitle language code or name")
	flags.StringVar(&apiURL, "api-url", "", "override the SubSource API base URL")
	flags.Duration("timeout", constants.DefaultTimeout, "per-request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug details and raw API responses")

	RootCmd.Flags().BoolVarP(&nonInteractive, "non-interactive", "y", false, "never ask; take the best match")
	RootCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing subtitles without asking")
	RootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "only show what would be searched")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDir(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SUBDL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv(CfgKeyAPIKey, constants.APIKeyEnv, "SUBDL_SUBSOURCE_APIKEY")

	flags := RootCmd.PersistentFlags()
	_ = viper.BindPFlag(CfgKeyLanguage, flags.Lookup("lang"))
	_ = viper.BindPFlag(CfgKeyBaseURL, flags.Lookup("api-url"))
	_ = viper.BindPFlag(CfgKeyTimeout, flags.Lookup("timeout"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error reading config file (%s): %v\n", viper.ConfigFileUsed(), err)
		}
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger, closeLog := newLogger(cmd.ErrOrStderr())
	defer closeLog()

	lang, ok := metadata.LookupLanguage(viper.GetString(CfgKeyLanguage))
	if !ok {
		return configError("unknown language %q", viper.GetString(CfgKeyLanguage))
	}

	interactive := !nonInteractive && isInteractive()
	if !nonInteractive && !interactive {
		logger.Warn("Input or output is not a terminal: prompts are disabled and the best ranked match is taken. Pass --non-interactive to silence this notice")
	}
	prompter := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout(), !interactive)
	out := cmd.OutOrStdout()

	root, err := resolveRoot(cmd.Context(), prompter, args, interactive)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	videos, err := fileops.DiscoverVideos(cmd.Context(), appFs, root)
	if err != nil {
		return inputError("%v", err)
	}
	if len(videos) == 0 {
		return inputError("no video files found in %s (looking for %s)", root, strings.Join(fileops.SupportedExtensions(), " "))
	}
	fmt.Fprintf(out, "Found %d video file(s). Language: %s.\n", len(videos), lang.Name)

	var catalog processor.Catalog
	if !dryRun {
		catalog, err = newCatalog(cmd.Context(), out, prompter, interactive, logger)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	interrupts := make(chan struct{}, 1)
	stopSignals := watchSignals(cancel, interrupts)
	defer stopSignals()

	proc := processor.NewProcessor(catalog, prompter, appFs, out, logger, processor.Options{
		Language:   lang,
		Force:      force,
		DryRun:     dryRun,
		Interrupts: interrupts,
	})
	if _, err := proc.Run(ctx, videos); err != nil {
		if coreErrors.IsFatal(err) {
			return configError("the SubSource API rejected the API key. Run 'subdl login' to set a new one")
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		return err
	}
	return nil
}

// resolveRoot returns the path argument, or asks for one when allowed.
func resolveRoot(ctx context.Context, p *prompt.Prompter, args []string, interactive bool) (string, error) {
	if len(args) > 0 {
		return cleanPath(args[0]), nil
	}
	if !interactive {
		return "", inputError("no path given. Usage: subdl [path]")
	}

	ctx, stop := notifyInterrupt(ctx)
	defer stop()
	answer, err := p.ReadLine(ctx, "Drag a video file or folder here and press Enter: ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", inputError("no path given")
		}
		return "", err
	}
	path := cleanPath(answer)
	if path == "" {
		return "", inputError("no path given")
	}
	return path, nil
}

// newCatalog builds the API client, asking for and storing a key when none is
// configured and a person is at the terminal.
func newCatalog(ctx context.Context, out io.Writer, p *prompt.Prompter, interactive bool, logger *logrus.Logger) (processor.Catalog, error) {
	apiKey := viper.GetString(CfgKeyAPIKey)
	if apiKey == "" {
		if !interactive {
			return nil, configError("SubSource API key not configured. Run 'subdl login', set %s, or add %s to the config file", constants.APIKeyEnv, CfgKeyAPIKey)
		}
		promptCtx, stop := notifyInterrupt(ctx)
		key, err := p.ReadLine(promptCtx, "SubSource API key not found. Please enter your API key: ")
		stop()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if err != nil || key == "" {
			return nil, configError("an API key is required")
		}
		path, err := saveAPIKey(ctx, key)
		if err != nil {
			return nil, configError("failed to save API key: %v", err)
		}
		fmt.Fprintf(out, "API key saved to %s\n", path)
		viper.Set(CfgKeyAPIKey, key)
		apiKey = key
	}
	return clientFor(apiKey, logger)
}

func clientFor(apiKey string, logger *logrus.Logger) (processor.Catalog, error) {
	client, err := NewClientFunc(subsource.Config{
		ApiKey:   apiKey,
		BaseURL:  viper.GetString(CfgKeyBaseURL),
		Timeout:  viper.GetDuration(CfgKeyTimeout),
		Verbose:  verbose,
		DebugDir: viper.GetString(CfgKeyDebugDir),
		Logger:   logger,
	})
	if err != nil {
		return nil, configError("failed to initialize SubSource client: %v", err)
	}
	return client, nil
}

// cleanPath undoes the quoting terminals add to dragged-in paths and expands ~.
func cleanPath(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	} else if filepath.Separator == '/' {
		s = unescapeShell(s)
	}
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}

// unescapeShell removes backslash escapes such as "My\ Movie".
func unescapeShell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
