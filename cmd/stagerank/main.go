// Package main provides the stagerank command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/stagerank/internal/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds state shared by subcommands, set up before any of them runs.
type app struct {
	configPath string
	verbose    bool
	v          *viper.Viper
	logger     *zap.Logger
}

func main() {
	os.Exit(run())
}

func run() int {
	a := &app{}
	root := newRootCmd(a)
	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if _, ok := err.(usageError); ok {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks command-line mistakes.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagerank",
		Short: "Rank genes by liver/blood stage divergence across species",
		Long: `stagerank scores every gene of a reference species by combining three factors:
rank divergence between liver and blood stage expression (F1), normalized cumulative
blood stage expression (F2) and consistency with orthologs in other species (F3).`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			a.logger = logger

			v, err := config.NewViper(a.configPath)
			if err != nil {
				return err
			}
			a.v = v
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./stagerank.yaml or ~/.stagerank.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose (development) logging")
	cmd.SetVersionTemplate("stagerank version {{.Version}}\n")

	cmd.AddCommand(newScoreCmd(a))
	cmd.AddCommand(newTopCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
