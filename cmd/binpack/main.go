// Package main provides a command-line tool that packs folders into a single
// compressed archive and restores them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BINPACK"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	log := logrus.New()

	root := &cobra.Command{
		Use:           "binpack",
		Short:         "Pack folders of mixed files into one compressed archive and restore them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			return configureLogger(log, v.GetString("log-level"), v.GetString("log-format"))
		},
	}
	root.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")
	root.PersistentFlags().Int("workers", runtime.NumCPU(), "Number of concurrent workers")

	root.AddCommand(newCompressCmd(v, log), newDecompressCmd(v, log))
	return root
}

func configureLogger(log *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got %q", format)
	}
	return nil
}
