package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Spountil/watermark-gdrive/internal/config"
	"github.com/Spountil/watermark-gdrive/internal/gdrive"
	"github.com/Spountil/watermark-gdrive/internal/server"
	"github.com/Spountil/watermark-gdrive/internal/utils"
	"github.com/Spountil/watermark-gdrive/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	defaultDataDir = filepath.Join(home, ".watermark-drive")
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "watermark-drive",
	Short:   "Drive change-notification watermarking server",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		s, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <resource-id>",
	Short: "Subscribe the webhook to a resource's change feed",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if cfg.Drive.WebhookURL == "" {
			return errors.New("webhook url is required to subscribe")
		}
		cmd.SilenceUsage = true

		resourceID := args[0]
		drive, err := driveClient(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		pageToken, err := drive.Changes.StartPageToken(ctx, resourceID)
		if err != nil {
			return err
		}

		ch, err := drive.Channels.Watch(ctx, pageToken, resourceID, cfg.Drive.WebhookURL, cfg.Drive.ChannelToken)
		if err != nil {
			return err
		}

		slog.Info("channel subscribed",
			"channel", ch.ID,
			"resource", ch.ResourceID,
			"expiration", ch.Expiration,
		)
		fmt.Printf("channel %s watching resource %s\n", ch.ID, ch.ResourceID)
		return nil
	},
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <channel-id> <resource-id>",
	Short: "Stop a live notification channel",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		cmd.SilenceUsage = true

		drive, err := driveClient(cfg)
		if err != nil {
			return err
		}

		if err := drive.Channels.Stop(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("channel %s stopped\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringP("datadir", "d", defaultDataDir, "Data directory")
	rootCmd.PersistentFlags().String("credentials", "", "Service account key file")
	rootCmd.PersistentFlags().String("webhook-url", "", "Public webhook address")

	rootCmd.Flags().StringP("bind", "b", config.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("cert", "", "Path to the certificate file")
	rootCmd.Flags().String("key", "", "Path to the key file")
	rootCmd.Flags().String("backend", config.BackendSqlite, "State backend (sqlite or file)")
	rootCmd.Flags().String("watched-folder", "", "Folder id to watermark images from")
	rootCmd.Flags().String("settings-folder", "", "Folder id holding settings.json and logo.png")
	rootCmd.Flags().String("results-folder", "", "Folder id watermarked images are uploaded to")
	rootCmd.Flags().Int("workers", 0, "Reconcile worker count")
	rootCmd.Flags().Int("queue-size", 0, "Reconcile queue size")
	rootCmd.Flags().String("rate-limit", config.DefaultRateLimit, "Webhook rate limit")
	rootCmd.Flags().StringSlice("ignore", nil, "File name patterns to skip")

	rootCmd.AddCommand(watchCmd, unwatchCmd)
}

func main() {
	// local development secrets; missing file is fine
	_ = godotenv.Load()

	logFile := filepath.Join(defaultDataDir, "logs", "server.log")
	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(defaultDataDir)
		viper.AddConfigPath(filepath.Join(home, ".config/watermark-drive"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("credentials_file", cmd.Flags().Lookup("credentials"))
	viper.BindPFlag("webhook_url", cmd.Flags().Lookup("webhook-url"))

	if f := cmd.Flags().Lookup("bind"); f != nil {
		viper.BindPFlag("addr", f)
		viper.BindPFlag("cert_file", cmd.Flags().Lookup("cert"))
		viper.BindPFlag("key_file", cmd.Flags().Lookup("key"))
		viper.BindPFlag("backend", cmd.Flags().Lookup("backend"))
		viper.BindPFlag("watched_folder_id", cmd.Flags().Lookup("watched-folder"))
		viper.BindPFlag("settings_folder_id", cmd.Flags().Lookup("settings-folder"))
		viper.BindPFlag("results_folder_id", cmd.Flags().Lookup("results-folder"))
		viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
		viper.BindPFlag("queue_size", cmd.Flags().Lookup("queue-size"))
		viper.BindPFlag("rate_limit", cmd.Flags().Lookup("rate-limit"))
		viper.BindPFlag("ignore_patterns", cmd.Flags().Lookup("ignore"))
	}

	viper.SetDefault("settings_before_mime", true)

	viper.SetEnvPrefix("WMDRIVE")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() *config.Config {
	cfg := config.Default()
	cfg.DataDir = viper.GetString("data_dir")
	cfg.Backend = orDefault(viper.GetString("backend"), cfg.Backend)

	cfg.HTTP.Addr = orDefault(viper.GetString("addr"), cfg.HTTP.Addr)
	cfg.HTTP.CertFile = viper.GetString("cert_file")
	cfg.HTTP.KeyFile = viper.GetString("key_file")
	cfg.HTTP.RateLimit = orDefault(viper.GetString("rate_limit"), cfg.HTTP.RateLimit)

	cfg.Drive.CredentialsFile = viper.GetString("credentials_file")
	cfg.Drive.ChannelToken = viper.GetString("channel_token")
	cfg.Drive.WebhookURL = viper.GetString("webhook_url")
	cfg.Drive.WatchedFolderID = viper.GetString("watched_folder_id")
	cfg.Drive.SettingsFolderID = viper.GetString("settings_folder_id")
	cfg.Drive.ResultsFolderID = viper.GetString("results_folder_id")

	cfg.Sync.Workers = viper.GetInt("workers")
	cfg.Sync.QueueSize = viper.GetInt("queue_size")
	cfg.Sync.SettingsBeforeMime = viper.GetBool("settings_before_mime")
	cfg.Sync.IgnorePatterns = viper.GetStringSlice("ignore_patterns")

	return cfg
}

func driveClient(cfg *config.Config) (*gdrive.Client, error) {
	if cfg.Drive.CredentialsFile == "" {
		return nil, errors.New("credentials file is required")
	}
	ts, err := gdrive.NewServiceAccountTokenSource(cfg.Drive.CredentialsFile, "", gdrive.ScopeDrive)
	if err != nil {
		return nil, err
	}
	return gdrive.NewClient(ts), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
