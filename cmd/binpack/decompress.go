package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goopsie/binpack/pkg/report"
	"github.com/goopsie/binpack/pkg/restore"
)

func newDecompressCmd(v *viper.Viper, log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress <archive_path> <output_folder>",
		Short: "Restore an archive into a folder, rebuilding converted files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, outputDir := args[0], args[1]

			policy := restore.DeleteImmediately
			if v.GetBool("staging") {
				policy = restore.StageForSweep
			}

			r := restore.New(
				restore.WithWorkers(v.GetInt("workers")),
				restore.WithSkipConversion(v.GetBool("skip-conversion")),
				restore.WithCleanupPolicy(policy),
				restore.WithLogger(log),
			)

			rep, err := r.Restore(cmd.Context(), archivePath, outputDir)
			if err != nil {
				return fmt.Errorf("decompress: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d entries into %s (%d converted, %d failed)\n",
				len(rep.Outcomes()), outputDir,
				rep.CountAction(report.Restored)+rep.CountAction(report.Converted),
				len(rep.Failures()))
			printFailures(cmd, rep)
			return nil
		},
	}

	cmd.Flags().Bool("skip-conversion", false, "Extract entries as stored without rebuilding original formats")
	cmd.Flags().Bool("staging", false, "Move converted envelopes to binary_files and sweep them at the end")
	return cmd
}
