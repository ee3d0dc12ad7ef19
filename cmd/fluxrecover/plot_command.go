package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
	"github.com/banshee-data/flux.recovery/internal/flux/monitor"
	"github.com/banshee-data/flux.recovery/internal/monitoring"
)

type plotOptions struct {
	capture string
	format  string
	track   int
	head    int
	out     string
}

func newPlotCommand(ctx *commandContext) *cobra.Command {
	opts := &plotOptions{}
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Write diagnostic plots for one track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(cmd, ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.capture, "capture", "", "Flux capture JSON file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Track format (overrides config and capture)")
	cmd.Flags().IntVar(&opts.track, "track", 0, "Cylinder to plot")
	cmd.Flags().IntVar(&opts.head, "head", 0, "Head to plot")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "plots", "Output directory")
	return cmd
}

func runPlot(cmd *cobra.Command, ctx *commandContext, opts *plotOptions) error {
	tc, err := ctx.tuning()
	if err != nil {
		return err
	}
	c, err := loadCapture(opts.capture)
	if err != nil {
		return err
	}
	resolveFormat(tc, opts.format, c)
	if err := tc.Validate(); err != nil {
		return err
	}

	key := flux.TrackKey{Cylinder: opts.track, Head: opts.head}
	t := c.Find(key)
	if t == nil || len(t.Revolutions) == 0 {
		return fmt.Errorf("capture has no revolutions for track %s", key)
	}
	prefix := filepath.Join(opts.out, fmt.Sprintf("track_%02d_%d", key.Cylinder, key.Head))

	written := []string{prefix + "_intervals.png"}
	if err := monitor.PlotIntervalHistogram(t.Revolutions, written[0]); err != nil {
		return err
	}

	f, err := l3decode.LookupFormat(tc.GetFormat())
	if err != nil {
		return err
	}
	name := tc.GetPreset()
	if name == "" {
		name = f.PresetFor(key.Cylinder)
	}
	preset, err := l2bits.LookupPreset(name)
	if err != nil {
		return err
	}
	pll, err := l2bits.NewSynchronizer(l2bits.ConfigFromTuning(tc, preset))
	if err != nil {
		return err
	}
	decCfg, err := l3decode.ConfigFromTuning(tc)
	if err != nil {
		return err
	}
	dec, err := l3decode.NewTrackDecoder(decCfg)
	if err != nil {
		return err
	}

	var passes []l5fusion.RevolutionDecode
	for _, rev := range t.Revolutions {
		stream, err := pll.Process(rev)
		if err != nil {
			monitoring.Logf("[plot] track %s rev %d: %v", key, rev.Index, err)
		}
		if stream == nil || stream.Len() == 0 {
			continue
		}
		if len(passes) == 0 {
			path := prefix + "_cells.png"
			if err := monitor.PlotCellTrace(stream, path); err != nil {
				return err
			}
			written = append(written, path)
		}
		pass := l5fusion.RevolutionDecode{Index: rev.Index, Stream: stream}
		if td, err := dec.DecodeTrack(stream, key); td != nil {
			pass.SyncOffset, pass.HasSync = td.SyncOffset, td.HasSync
		} else if err != nil && !errors.Is(err, flux.ErrSyncNotFound) {
			return err
		}
		passes = append(passes, pass)
	}

	if len(passes) > 0 {
		v, err := l5fusion.NewVoter(l5fusion.ConfigFromTuning(tc))
		if err != nil {
			return err
		}
		fused, err := v.Fuse(passes)
		if fused != nil {
			path := prefix + "_fusion.png"
			if err := monitor.PlotFusionConfidence(fused, path); err != nil {
				return err
			}
			written = append(written, path)
		} else if err != nil {
			return err
		}
	}

	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
