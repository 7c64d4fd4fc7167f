package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/themesync/internal/client"
	"github.com/openmined/themesync/internal/client/config"
	"github.com/openmined/themesync/internal/client/sync"
	"github.com/openmined/themesync/internal/utils"
	"github.com/openmined/themesync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "themesync",
	Short: "Keep a local theme directory in sync with a remote theme",
	Long: `themesync reconciles a local theme directory with a remote theme, asking
how to resolve differences, then keeps pulling remote changes.`,
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now, show header
		cmd.SilenceUsage = true
		showHeader(cmd, cfg)

		c, err := client.New(cmd.Context(), cfg, newPrompter(), sync.NewLineReporter(cmd.OutOrStdout()))
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return c.Start(cmd.Context())
	},
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringP("config", "c", config.DefaultConfigPath, "themesync config file")
	pf.Int64P("theme", "t", 0, "Remote theme id")
	pf.StringP("store", "s", "", "Store URL")
	pf.String("password", "", "Theme access token")
	pf.StringP("path", "p", ".", "Local theme directory")
	pf.String("backend", config.BackendAPI, "Remote backend (api|s3)")
	pf.String("strategy", "", "Resolve every difference the same way (local|remote)")
	pf.StringSliceP("only", "o", nil, "Sync only keys matching these globs")
	pf.StringSliceP("ignore", "x", nil, "Skip keys matching these globs")
	pf.Int("concurrency", config.DefaultConcurrency, "Max parallel asset transfers")

	f := cmd.Flags()
	f.SortFlags = false
	f.Duration("interval", config.DefaultPollInterval, "Remote poll interval")
	f.String("conflict-policy", config.ConflictPolicyExit, "What to do when a file changed on both sides (exit|continue)")
	f.String("control-plane", "", "Control plane listen address (host:port)")
}

func main() {
	// .env in the working directory, if any
	_ = godotenv.Load()

	logFile := config.DefaultLogFilePath
	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	// Setup handlers for both outputs
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if sync.IsConflict(err) {
			fmt.Fprintln(os.Stderr, red.Render(err.Error()))
		}
		os.Exit(1)
	}
}

// loadConfig merges the config file, THEMESYNC_* env vars and flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := config.DefaultConfigPath
	if f := cmd.Flag("config"); f != nil {
		configPath = f.Value.String()
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	v.SetEnvPrefix("THEMESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindFlags(v, cmd, map[string]string{
		"theme_id":           "theme",
		"store_url":          "store",
		"access_token":       "password",
		"path":               "path",
		"backend":            "backend",
		"strategy":           "strategy",
		"only":               "only",
		"ignore":             "ignore",
		"concurrency":        "concurrency",
		"poll_interval":      "interval",
		"conflict_policy":    "conflict-policy",
		"control_plane.addr": "control-plane",
	})

	// nested keys only reachable through the config file or env
	for _, key := range []string{
		"control_plane.token",
		"s3.bucket",
		"s3.region",
		"s3.access_key",
		"s3.secret_key",
		"s3.endpoint",
		"s3.prefix",
		"s3.accelerate",
	} {
		_ = v.BindEnv(key)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if cfg.S3 != nil && cfg.S3.BucketName == "" && cfg.Backend != config.BackendS3 {
		cfg.S3 = nil
	}

	cfg.ConfigPath = configPath
	if abs, err := filepath.Abs(configPath); err == nil {
		cfg.ConfigPath = abs
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if f := cmd.Flag(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func showHeader(cmd *cobra.Command, cfg *config.Config) {
	remote := cfg.StoreURL
	if cfg.Backend == config.BackendS3 {
		remote = "s3://" + cfg.S3.BucketName
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, titleStyle.Render(version.AppName+" "+version.Short()))
	fmt.Fprintf(out, "%s%s\n", gray.Render("Remote  "), green.Render(remote))
	fmt.Fprintf(out, "%s%s\n", gray.Render("Theme   "), green.Render(fmt.Sprint(cfg.ThemeID)))
	fmt.Fprintf(out, "%s%s\n\n", gray.Render("Path    "), green.Render(cfg.Path))
}
