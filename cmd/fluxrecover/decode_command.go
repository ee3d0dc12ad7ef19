package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/banshee-data/flux.recovery/internal/flux/l4sectors"
	"github.com/banshee-data/flux.recovery/internal/flux/pipeline"
)

type decodeOptions struct {
	capture  string
	format   string
	workers  int
	json     bool
	all      bool
	progress bool
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	opts := &decodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a flux capture into sector statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.capture, "capture", "", "Flux capture JSON file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Track format (overrides config and capture)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Tracks decoded in parallel (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Write the report as JSON")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every sector, not only the ones that need attention")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Print per-track progress to stderr")
	return cmd
}

func runDecode(cmd *cobra.Command, ctx *commandContext, opts *decodeOptions) error {
	tc, err := ctx.tuning()
	if err != nil {
		return err
	}
	c, err := loadCapture(opts.capture)
	if err != nil {
		return err
	}
	resolveFormat(tc, opts.format, c)
	if opts.workers > 0 {
		tc.Workers = &opts.workers
	}

	cfg, err := pipeline.ConfigFromTuning(tc)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	var obs pipeline.Observer
	if opts.progress {
		obs = progressPrinter(cmd.ErrOrStderr())
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	report, runErr := p.Run(runCtx, c.Tracks, obs)
	if report == nil {
		return runErr
	}

	if opts.json {
		if err := writeJSON(cmd, newReportView(report)); err != nil {
			return err
		}
		return runErr
	}
	printReport(cmd.OutOrStdout(), report, opts.all)
	return runErr
}

func progressPrinter(w io.Writer) pipeline.Observer {
	return pipeline.ObserverFunc(func(e pipeline.ProgressEvent) {
		switch e.Kind {
		case pipeline.EventTrackDone, pipeline.EventTrackFailed, pipeline.EventTrackSkipped:
			suffix := ""
			if e.Err != nil {
				suffix = ": " + e.Err.Error()
			}
			fmt.Fprintf(w, "[%d/%d] %s %s%s\n", e.Done, e.Total, e.Track, e.Kind, suffix)
		}
	})
}

func printReport(w io.Writer, r *pipeline.Report, all bool) {
	rows := make([][]string, 0, len(r.Tracks))
	for i := range r.Tracks {
		tr := &r.Tracks[i]
		status := "ok"
		switch {
		case tr.Skipped:
			status = "skipped"
		case tr.Err != nil:
			status = tr.Err.Error()
		}
		usable := 0
		for _, s := range tr.Sectors {
			if s.Usable() {
				usable++
			}
		}
		rows = append(rows, []string{
			tr.Key.String(),
			strconv.Itoa(tr.Passes),
			fmt.Sprintf("%d/%d", usable, len(tr.Sectors)),
			fmt.Sprintf("%.1f%%", tr.Quality()*100),
			tr.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Track", "Passes", "Usable", "Quality", "Time", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))

	var sectorRows [][]string
	for _, s := range r.Statuses {
		if !all && s.State == l4sectors.StateOK && s.Flags == 0 {
			continue
		}
		sectorRows = append(sectorRows, []string{
			l4sectors.Key{Track: s.Track, Head: s.Head, Sector: s.Sector}.String(),
			string(s.State),
			fmt.Sprintf("%.0f%%", s.Confidence),
			strconv.Itoa(s.Retries),
			s.Flags.String(),
		})
	}
	if len(sectorRows) > 0 {
		fmt.Fprintln(w, renderTable(
			[]string{"Sector", "State", "Conf", "Reads", "Flags"},
			sectorRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	counts := r.Counts()
	fmt.Fprintf(w, "Run %s: %s sectors (%s OK, %s recovered, %s partial, %s bad CRC, %s missing) from %s bits in %s\n",
		r.RunID,
		humanize.Comma(int64(len(r.Statuses))),
		humanize.Comma(int64(counts[l4sectors.StateOK])),
		humanize.Comma(int64(counts[l4sectors.StateRecovered])),
		humanize.Comma(int64(counts[l4sectors.StatePartial])),
		humanize.Comma(int64(counts[l4sectors.StateBadCRC])),
		humanize.Comma(int64(counts[l4sectors.StateMissing])),
		humanize.Comma(r.Counters.Bits),
		r.Duration().Round(time.Millisecond))
	if r.Counters.WeakBits > 0 {
		fmt.Fprintf(w, "Weak bits: %s\n", humanize.Comma(r.Counters.WeakBits))
	}
	if r.Protection != nil {
		if r.Protection.Detected {
			fmt.Fprintf(w, "Protection: %s\n", r.Protection)
		} else {
			fmt.Fprintf(w, "Protection: none on track %d\n", r.Protection.Track)
		}
	}
	if r.Cancelled {
		fmt.Fprintln(w, "Run cancelled; unfinished tracks are reported as MISSING")
	}
}
