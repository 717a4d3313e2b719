package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/goopsie/binpack/pkg/codec"
	"github.com/goopsie/binpack/pkg/format"
	"github.com/goopsie/binpack/pkg/pack"
	"github.com/goopsie/binpack/pkg/report"
)

func newCompressCmd(v *viper.Viper, log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <input_folder> <output_archive>",
		Short: "Pack a folder into a single archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputDir, archivePath := args[0], args[1]

			var opts []format.Option
			if v.GetBool("include-json") {
				opts = append(opts, format.WithJSON())
			}
			if v.GetBool("extended-images") {
				opts = append(opts, format.WithExtendedImages())
			}

			builder := pack.NewBuilder(
				pack.WithWorkers(v.GetInt("workers")),
				pack.WithRecursive(v.GetBool("recursive")),
				pack.WithClassifier(format.New(opts...)),
				pack.WithLogger(log),
			)

			spec := codec.Spec{
				Algorithm: v.GetString("algorithm"),
				Level:     v.GetInt64("level"),
			}
			rep, err := builder.Build(cmd.Context(), inputDir, archivePath, spec, v.GetBool("convert-to-binary"))
			if err != nil {
				return fmt.Errorf("compress: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d entries into %s (%d skipped, %d failed)\n",
				rep.CountAction(report.Archived), archivePath,
				rep.CountAction(report.Skipped), rep.CountAction(report.Failed))
			printFailures(cmd, rep)
			return nil
		},
	}

	addCompressFlags(cmd.Flags())
	return cmd
}

func addCompressFlags(fs *pflag.FlagSet) {
	fs.String("algorithm", codec.Zstd, "Compression algorithm: Zstd, Bzip2, Deflated, Lz4")
	fs.Int64("level", 3, "Compression level; out-of-range values use the algorithm default")
	fs.Bool("convert-to-binary", false, "Wrap images and text files into .bin envelopes before archiving")
	fs.Bool("recursive", false, "Include files in subdirectories")
	fs.Bool("include-json", false, "Treat .json files as text")
	fs.Bool("extended-images", false, "Treat jpeg, gif, webp, bmp and tiff files as images")
}

func printFailures(cmd *cobra.Command, rep *report.Report) {
	for _, o := range rep.Failures() {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s [%s]: %v\n", o.Entry, o.Kind, o.Err)
	}
}
