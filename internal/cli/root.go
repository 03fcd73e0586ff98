// Package cli is the command-line surface: run, serve and formatters.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"slackkanbanize/internal/config"
)

// flagValues holds root persistent flags; they override file and env values.
type flagValues struct {
	configPath     string
	envFile        string
	slackToken     string
	slackChannel   string
	slackUser      string
	kanbanizeKey   string
	kanbanizeBoard string
	kanbanizeSub   string
	collectMinutes int
	formatter      string
	storagePath    string
	logLevel       string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	root, _ := newRoot(version)
	return root
}

func newRoot(version string) (*cobra.Command, *flagValues) {
	fv := &flagValues{}
	root := &cobra.Command{
		Use:   "slack-kanbanize",
		Short: "Post new Kanbanize board activity to a Slack channel",
		Long: `slack-kanbanize fetches recent activity of a Kanbanize board, drops anything
already delivered (tracked by a persisted watermark), groups the rest per task
and minute, and posts one Slack message with an attachment per group.

Without a subcommand it runs a single pass, which suits cron.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(fv.envFile)
		},
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, fv, version)
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&fv.configPath, "config", "c", "", "config file (JSON or YAML)")
	pf.StringVar(&fv.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	pf.StringVar(&fv.slackToken, "slack-token", "", "Slack bot token (env "+config.EnvSlackToken+")")
	pf.StringVar(&fv.slackChannel, "slack-channel", "", "Slack channel (env "+config.EnvSlackChannel+")")
	pf.StringVar(&fv.slackUser, "slack-user", "", "username shown on posted messages")
	pf.StringVar(&fv.kanbanizeKey, "kanbanize-key", "", "Kanbanize API key (env "+config.EnvKanbanizeKey+")")
	pf.StringVar(&fv.kanbanizeBoard, "kanbanize-board", "", "Kanbanize board id (env "+config.EnvKanbanizeBoard+")")
	pf.StringVar(&fv.kanbanizeSub, "kanbanize-subdomain", "", "Kanbanize account subdomain")
	pf.IntVar(&fv.collectMinutes, "collect-minutes", config.DefaultCollectMinutes, "how many minutes of activity each pass requests")
	pf.StringVar(&fv.formatter, "formatter", "", "activity formatter (see the formatters command)")
	pf.StringVar(&fv.storagePath, "storage-path", "", "watermark location (default ~/.slack-kanbanize-last-msg)")
	pf.StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRunCommand(fv, version))
	root.AddCommand(newServeCommand(fv, version))
	root.AddCommand(newFormattersCommand())
	return root, fv
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string, args []string, stderr io.Writer) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// overlay returns the env+flag layer applied on top of every parsed file.
func (fv *flagValues) overlay(cmd *cobra.Command) func(*config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	return func(cfg *config.Config) {
		config.ApplyEnv(cfg, nil)
		if changed("slack-token") {
			cfg.Slack.Token = fv.slackToken
		}
		if changed("slack-channel") {
			cfg.Slack.Channel = fv.slackChannel
		}
		if changed("slack-user") {
			cfg.Slack.Username = fv.slackUser
		}
		if changed("kanbanize-key") {
			cfg.Kanbanize.APIKey = fv.kanbanizeKey
		}
		if changed("kanbanize-board") {
			cfg.Kanbanize.BoardID = fv.kanbanizeBoard
		}
		if changed("kanbanize-subdomain") {
			cfg.Kanbanize.Subdomain = fv.kanbanizeSub
		}
		if changed("collect-minutes") {
			cfg.Feed.CollectMinutes = fv.collectMinutes
		}
		if changed("formatter") {
			cfg.Feed.Formatter = fv.formatter
		}
		if changed("storage-path") {
			cfg.Storage.Path = fv.storagePath
		}
		if changed("log-level") {
			cfg.Logging.Level = fv.logLevel
		}
	}
}

func (fv *flagValues) manager(cmd *cobra.Command) *config.Manager {
	return config.NewManager(fv.configPath, fv.overlay(cmd))
}
