package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"

	"github.com/wdamron/x64code"
)

var rootCmd = &cobra.Command{
	Use:               "x64code",
	Short:             "x64code - x86-64 assembler toolkit",
	Long:              `Inspect the instruction table, assemble and run small programs, and disassemble binary files`,
	PersistentPreRunE: before,
	SilenceUsage:      true,
}

type cliConfig struct {
	logLevel string
	mode     string
	table    string
}

// Defaults come from the environment and are overwritten by flags.
var config = cliConfig{
	logLevel: env.Str("X64CODE_LOG_LEVEL", "warn"),
	mode:     env.Str("X64CODE_MODE", "long"),
	table:    env.Str("X64CODE_TABLE"),
}

func init() {
	globalFlags(rootCmd.PersistentFlags(), &config)
	rootCmd.AddCommand(tableCmd, demoCmd, dumpCmd)
}

func globalFlags(fs *pflag.FlagSet, c *cliConfig) {
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Log messages including and over the specified level: debug, info, warn, error, fatal, panic")
	fs.StringVar(&c.mode, "mode", c.mode, "Processor mode: real, compat or long")
	fs.StringVar(&c.table, "table", c.table, "TOML file with definitions to overlay on the built-in table")
}

func before(cmd *cobra.Command, args []string) error {
	if config.logLevel == "" {
		config.logLevel = "warn"
	}
	level, err := logrus.ParseLevel(config.logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

func mode() (x64code.Mode, error) {
	m, ok := x64code.ParseMode(config.mode)
	if !ok {
		return 0, errors.Errorf("Unknown processor mode %q", config.mode)
	}
	return m, nil
}

// Get the built-in table, with the definitions of the --table file overlaid when it is set.
func table() (*x64code.DefTable, error) {
	if config.table == "" {
		return x64code.DefaultTable, nil
	}
	f, err := os.Open(config.table)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := x64code.ParseTableTOML(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Reading %s", config.table)
	}
	logrus.WithFields(logrus.Fields{"file": config.table, "groups": len(raw)}).Debug("Loaded table overlay")
	return x64code.NewDefTable(x64code.BuiltinRaw().Overlay(raw), x64code.DefaultGlobals), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
