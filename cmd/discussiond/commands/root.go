// Package commands provides the discussiond CLI command tree.
package commands

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/internal/config"
	"github.com/roundtable/engine/internal/logging"
)

var (
	// Version is set at build time via -ldflags.
	Version   = "0.1.0"
	BuildTime = "dev"

	// Migrations holds the embedded event store migration files, set by
	// main before Execute runs.
	Migrations embed.FS
)

var (
	printLogs  bool
	logLevel   string
	logFile    bool
	showConfig bool
	workDir    string
)

var rootCmd = &cobra.Command{
	Use:   "discussiond",
	Short: "Discussion coordination engine",
	Long: `discussiond runs multi-participant LLM deliberation sessions: a
deterministic moderator state machine, turn scheduling, an append-only
event log, and an HTTP/SSE transport for observers to watch and steer
a session live.

Run 'discussiond serve' to start the server, or 'discussiond session run'
to drive one scenario headlessly from the command line.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if logFile {
			logging.Info().
				Str("version", Version).
				Str("logFile", logging.GetLogFilePath()).
				Msg("discussiond started with file logging")
		}

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error getting working directory: %v\n", err)
				os.Exit(1)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
				os.Exit(1)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "error marshaling config: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file under /tmp")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print merged configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&workDir, "directory", "d", "", "Working directory for project-level config")

	rootCmd.SetVersionTemplate(fmt.Sprintf("discussiond %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tuiCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getWorkDir returns workDir, falling back to the process's current
// directory when unset.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
