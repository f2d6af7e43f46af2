package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/initializ/convey/config"
	"github.com/initializ/convey/history"
)

var (
	historyLimit int
	historyRun   int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "show the stage log of one run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer hist.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if historyRun > 0 {
		records, err := hist.Stages(cmd.Context(), historyRun)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no stage log for run #%d", historyRun)
		}
		fmt.Fprintln(w, "STAGE\tSTATUS\tKIND\tDURATION")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				rec.Name, rec.Status, rec.Kind, time.Duration(rec.DurationMS)*time.Millisecond)
		}
		return nil
	}

	runs, err := hist.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTATUS\tBRANCH\tREVISION\tIMAGE\tSTARTED\tDURATION")
	for _, run := range runs {
		rev := run.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.Number, run.Status, run.Branch, rev, run.Image,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			time.Duration(run.DurationMS)*time.Millisecond)
	}
	return nil
}
