// Package monitor renders diagnostic PNG plots of captures and decoder
// state: flux interval histograms, PLL cell-time traces and per-bit fusion
// confidence.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
)

const (
	// DefaultBinNs is the histogram bin width.
	DefaultBinNs = 50.0
	// maxIntervalNs bounds the histogram range; longer intervals are gaps.
	maxIntervalNs = 20000.0
	// peakFraction is the share of intervals a bin needs to be marked a peak.
	peakFraction = 0.01
	// maxTracePoints caps the points drawn per line; longer series are
	// strided. A plot is about 1300 pixels wide, so more only overdraws.
	maxTracePoints = 4000
	// maxMarkers caps the weak-position markers drawn per plot.
	maxMarkers = 500
)

var (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
	weakColor  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
)

// PlotIntervalHistogram writes a histogram of every flux interval in revs
// to path. Peaks are marked; on a healthy MFM capture they sit at 2, 3 and
// 4 cells.
func PlotIntervalHistogram(revs []*l1flux.Revolution, path string) error {
	if len(revs) == 0 {
		return flux.InvalidArgf("no revolutions to plot")
	}
	maxNs := DefaultBinNs
	for _, r := range revs {
		for _, d := range r.Deltas() {
			if d > maxNs {
				maxNs = d
			}
		}
	}
	if maxNs > maxIntervalNs {
		maxNs = maxIntervalNs
	}
	h, err := l1flux.NewHistogram(revs, DefaultBinNs, maxNs+DefaultBinNs)
	if err != nil {
		return err
	}
	if h.Total == 0 {
		return flux.InvalidArgf("revolutions hold no intervals")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track %s - Flux Intervals (%d revolutions, %d overflow)", revs[0].Key(), len(revs), h.Overflow)
	p.X.Label.Text = "Interval (ns)"
	p.Y.Label.Text = "Count"

	bins := make(plotter.XYs, len(h.Counts))
	var top float64
	for i, c := range h.Counts {
		bins[i] = plotter.XY{X: (float64(i) + 0.5) * h.BinNs, Y: float64(c)}
		if float64(c) > top {
			top = float64(c)
		}
	}
	hist, err := plotter.NewHistogram(bins, len(bins))
	if err != nil {
		return err
	}
	hist.FillColor = plotutil.Color(0)
	hist.LineStyle.Width = 0
	p.Add(hist)

	if peaks := h.Peaks(peakFraction); len(peaks) > 0 {
		pts := make(plotter.XYs, len(peaks))
		for i, x := range peaks {
			pts[i] = plotter.XY{X: x, Y: top}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.Color = weakColor
		p.Add(sc)
		p.Legend.Add("peaks", sc)
	}
	return save(p, path)
}

// PlotCellTrace writes the PLL's cell-time estimate over the stream, with
// weak transitions marked.
func PlotCellTrace(stream *l2bits.BitCellStream, path string) error {
	if stream == nil || stream.Len() == 0 {
		return flux.InvalidArgf("empty bit-cell stream")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("PLL Cell Time (%d cells, %d weak, %d spikes)", stream.Len(), len(stream.Weak), stream.Stats.SpikeRejections)
	p.X.Label.Text = "Cell"
	p.Y.Label.Text = "Cell time (ns)"

	line, err := plotter.NewLine(strided(stream.CellNs))
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(1)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("cell ns", line)

	if err := addMarkers(p, stream.Weak, stream.CellNs, "weak"); err != nil {
		return err
	}
	return save(p, path)
}

// PlotFusionConfidence writes the per-bit agreement of a fused track, with
// weak positions marked.
func PlotFusionConfidence(fused *l5fusion.TrackFusionResult, path string) error {
	if fused == nil || len(fused.Confidence) == 0 {
		return flux.InvalidArgf("empty fusion result")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Fusion Confidence (%d passes, quality %.1f%%)", fused.Considered, fused.QualityPercent())
	p.X.Label.Text = "Bit"
	p.Y.Label.Text = "Agreement"
	p.Y.Min, p.Y.Max = 0, 1.05

	line, err := plotter.NewLine(strided(fused.Confidence))
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(2)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("confidence", line)

	if err := addMarkers(p, fused.WeakPositions, fused.Confidence, "weak"); err != nil {
		return err
	}
	return save(p, path)
}

func strided(ys []float64) plotter.XYs {
	step := 1
	if len(ys) > maxTracePoints {
		step = (len(ys) + maxTracePoints - 1) / maxTracePoints
	}
	pts := make(plotter.XYs, 0, len(ys)/step+1)
	for i := 0; i < len(ys); i += step {
		pts = append(pts, plotter.XY{X: float64(i), Y: ys[i]})
	}
	return pts
}

// markerPoints places every step-th index of at on ys, skipping indexes
// outside ys.
func markerPoints(at []int, ys []float64) plotter.XYs {
	step := 1
	if len(at) > maxMarkers {
		step = (len(at) + maxMarkers - 1) / maxMarkers
	}
	pts := make(plotter.XYs, 0, len(at)/step+1)
	for k := 0; k < len(at); k += step {
		if i := at[k]; i >= 0 && i < len(ys) {
			pts = append(pts, plotter.XY{X: float64(i), Y: ys[i]})
		}
	}
	return pts
}

func addMarkers(p *plot.Plot, at []int, ys []float64, label string) error {
	pts := markerPoints(at, ys)
	if len(pts) == 0 {
		return nil
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.Color = weakColor
	sc.Radius = vg.Points(2)
	p.Add(sc)
	p.Legend.Add(label, sc)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return nil
}

func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
