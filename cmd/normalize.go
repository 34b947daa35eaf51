package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chronofix/internal"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	dryRunFlag    bool
	useExifTool   bool
	noJournalFlag bool
	noProgress    bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [folder]",
	Short: "Rename media files by capture time and fix their EXIF dates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var folder string
		if len(args) > 0 {
			folder = args[0]
		}

		a, err := newApp(appOptions{
			folder:      folder,
			dryRun:      dryRunFlag,
			useExifTool: useExifTool,
			noJournal:   noJournalFlag,
			quietLog:    !noProgress,
		})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		files, err := internal.ScanMediaFiles(a.fs, a.root, a.cfg, a.log.Logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Found %d media files\n", len(files))
		if dryRunFlag {
			fmt.Fprintln(out, "Dry run mode: no files will be renamed or modified")
		}

		batch := internal.NewBatch(a.proc, a.log.Logger)
		if !noProgress && len(files) > 0 {
			batch.Progress = progressbar.Default(int64(len(files)), "Normalizing")
		}
		stats := batch.Run(ctx, files)

		fmt.Fprint(out, stats.Summary())
		if batch.Errors.Total > 0 {
			fmt.Fprint(out, batch.Errors.GenerateReport())
		}
		if a.journal != nil {
			fmt.Fprintf(out, "Run journal: %s\n", a.journal.ManifestPath())
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show planned renames without touching files")
	normalizeCmd.Flags().BoolVar(&useExifTool, "exiftool", false, "Also read dates with the exiftool binary")
	normalizeCmd.Flags().BoolVar(&noJournalFlag, "no-journal", false, "Do not write a run journal")
	normalizeCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Log every file instead of showing a progress bar")

	rootCmd.AddCommand(normalizeCmd)
}
