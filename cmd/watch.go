package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronofix/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var settleFlag time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Normalize media files as they appear under a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var folder string
		if len(args) > 0 {
			folder = args[0]
		}

		a, err := newApp(appOptions{
			folder:      folder,
			useExifTool: useExifTool,
			noJournal:   noJournalFlag,
		})
		if err != nil {
			return err
		}
		defer a.close()
		logger := a.log.Logger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := internal.NewWatcher(a.root, a.cfg, settleFlag, logger)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", a.root, err)
		}
		defer w.Close()

		batch := internal.NewBatch(a.proc, logger)
		a.journal.LogRunStart(0, false)
		logger.Info("watching for new media", zap.String("root", a.root))

		err = w.Run(ctx, func(path string) string {
			batch.Stats.Total++
			return batch.ProcessOne(path).FinalPath
		})

		a.journal.LogRunEnd(batch.Stats)
		fmt.Fprint(cmd.OutOrStdout(), batch.Stats.Summary())
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&settleFlag, "settle", 2*time.Second, "How long a file must stay unchanged before it is processed")
	watchCmd.Flags().BoolVar(&useExifTool, "exiftool", false, "Also read dates with the exiftool binary")
	watchCmd.Flags().BoolVar(&noJournalFlag, "no-journal", false, "Do not write a run journal")

	rootCmd.AddCommand(watchCmd)
}
