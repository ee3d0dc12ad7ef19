package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/synth"
)

type synthOptions struct {
	format      string
	cylinders   int
	heads       int
	revs        int
	seed        int64
	jitter      float64
	wobble      float64
	spikeEvery  int
	weakSectors int
	weakOffset  int
	weakLength  int
	out         string
}

func newSynthCommand() *cobra.Command {
	opts := &synthOptions{}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic flux capture of a formatted disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "ibm_mfm_dd", "Track format")
	cmd.Flags().IntVar(&opts.cylinders, "cylinders", 2, "Cylinders to write")
	cmd.Flags().IntVar(&opts.heads, "heads", 1, "Heads to write")
	cmd.Flags().IntVar(&opts.revs, "revs", 3, "Revolutions per track")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	cmd.Flags().Float64Var(&opts.jitter, "jitter", -1, "Transition jitter σ in ns (default 2% of the cell)")
	cmd.Flags().Float64Var(&opts.wobble, "wobble", 0.005, "Relative speed wobble")
	cmd.Flags().IntVar(&opts.spikeEvery, "spike-every", 0, "Insert a noise spike after every Nth transition")
	cmd.Flags().IntVar(&opts.weakSectors, "weak-sectors", 0, "Weak sectors on cylinder 0 head 0, starting at the first sector")
	cmd.Flags().IntVar(&opts.weakOffset, "weak-offset", 100, "First weak payload byte")
	cmd.Flags().IntVar(&opts.weakLength, "weak-length", 16, "Weak payload bytes per sector")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "capture.json", "Output capture file; a .zst suffix compresses it")
	return cmd
}

func runSynth(cmd *cobra.Command, opts *synthOptions) error {
	f, err := l3decode.LookupFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.heads > f.Heads {
		return fmt.Errorf("format %s has %d heads, asked for %d", f.Name, f.Heads, opts.heads)
	}
	if opts.cylinders > f.Cylinders {
		return fmt.Errorf("format %s has %d cylinders, asked for %d", f.Name, f.Cylinders, opts.cylinders)
	}
	if opts.revs < 1 {
		return fmt.Errorf("--revs must be at least 1")
	}

	g := synth.NewGenerator(f, opts.seed)
	g.Revolutions = opts.revs
	g.Wobble = opts.wobble
	g.SpikeEvery = opts.spikeEvery
	if opts.jitter >= 0 {
		g.JitterNs = opts.jitter
	}
	if opts.weakSectors > 0 {
		g.Sectors = func(cyl, head int) []synth.Sector {
			if cyl != 0 || head != 0 {
				return nil
			}
			s := synth.StandardSectors(f, cyl, head)
			for i := 0; i < opts.weakSectors && i < len(s); i++ {
				s[i].WeakOffset, s[i].WeakLength = opts.weakOffset, opts.weakLength
			}
			return s
		}
	}

	c, err := g.Capture(opts.cylinders, opts.heads)
	if err != nil {
		return err
	}
	if err := l1flux.WriteCaptureFile(opts.out, c); err != nil {
		return err
	}

	var transitions int
	for _, t := range c.Tracks {
		for _, r := range t.Revolutions {
			transitions += r.Len()
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d tracks of %s, %s transitions\n",
		opts.out, len(c.Tracks), f.Name, humanize.Comma(int64(transitions)))
	return nil
}
