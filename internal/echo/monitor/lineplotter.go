package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// LinePlotter records simulated echo lines for visualization. It captures
// the output of a simulation batch and renders PNG plots of the line
// envelopes, the RF trace of the first line, and per-stage kernel timings
// after a run.
type LinePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	samplingFrequency float64
	radialDecimation  int
	lines             [][]complex128
	timings           map[string][]float64
}

// NewLinePlotter creates a plotter with no output directory configured.
func NewLinePlotter() *LinePlotter {
	return &LinePlotter{}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/phantom-001/20260830_173129")
func (lp *LinePlotter) Start(outputDir string) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	lp.outputDir = outputDir
	lp.enabled = true
	lp.lines = nil
	lp.timings = nil
	return nil
}

// Stop disables recording. Call GeneratePlots() to produce output files.
func (lp *LinePlotter) Stop() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (lp *LinePlotter) IsEnabled() bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.enabled
}

// Record captures the output of a simulation batch.
func (lp *LinePlotter) Record(lines [][]complex128, samplingFrequency float64, radialDecimation int) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled {
		return
	}
	if radialDecimation < 1 {
		radialDecimation = 1
	}
	lp.lines = lines
	lp.samplingFrequency = samplingFrequency
	lp.radialDecimation = radialDecimation
}

// RecordTimings captures per-stage kernel timing telemetry.
func (lp *LinePlotter) RecordTimings(timings map[string][]float64) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled {
		return
	}
	lp.timings = timings
}

// GeneratePlots creates PNG files for the recorded batch.
// Returns the number of plots generated and any error.
func (lp *LinePlotter) GeneratePlots() (int, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	if len(lp.lines) == 0 {
		return 0, nil
	}

	plotCount := 0

	if err := lp.generateEnvelopePlot(); err != nil {
		return plotCount, fmt.Errorf("envelope plot: %w", err)
	}
	plotCount++

	if err := lp.generateRFPlot(); err != nil {
		return plotCount, fmt.Errorf("rf plot: %w", err)
	}
	plotCount++

	if len(lp.timings) > 0 {
		if err := lp.generateTimingPlot(); err != nil {
			return plotCount, fmt.Errorf("timing plot: %w", err)
		}
		plotCount++
	}

	return plotCount, nil
}

// sampleTimeMicros returns the round-trip time of retained sample i in
// microseconds, falling back to the sample index when the sampling
// frequency is unknown.
func (lp *LinePlotter) sampleTimeMicros(i int) float64 {
	if lp.samplingFrequency <= 0 {
		return float64(i)
	}
	return float64(i*lp.radialDecimation) / lp.samplingFrequency * 1e6
}

// generateEnvelopePlot overlays the envelope of every recorded line.
func (lp *LinePlotter) generateEnvelopePlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Echo Line Envelopes (%d lines)", len(lp.lines))
	p.X.Label.Text = "Time (us)"
	p.Y.Label.Text = "Envelope"

	colors := generateColors(len(lp.lines))

	for i, line := range lp.lines {
		env := envelope(line)
		pts := make(plotter.XYs, len(env))
		for j, v := range env {
			pts[j] = plotter.XY{X: lp.sampleTimeMicros(j), Y: v}
		}

		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = colors[i]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("line %d", i), l)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(lp.outputDir, "lines_envelope.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save envelope plot: %w", err)
	}
	return nil
}

// generateRFPlot draws the real part of the first recorded line.
func (lp *LinePlotter) generateRFPlot() error {
	line := lp.lines[0]

	p := plot.New()
	p.Title.Text = "Echo Line 0 (RF)"
	p.X.Label.Text = "Time (us)"
	p.Y.Label.Text = "Amplitude"

	pts := make(plotter.XYs, len(line))
	for j, v := range line {
		pts[j] = plotter.XY{X: lp.sampleTimeMicros(j), Y: real(v)}
	}

	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	l.Width = vg.Points(1)
	p.Add(l)

	file := filepath.Join(lp.outputDir, "line_00_rf.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save rf plot: %w", err)
	}
	return nil
}

// generateTimingPlot draws per-stage kernel timings per line.
func (lp *LinePlotter) generateTimingPlot() error {
	p := plot.New()
	p.Title.Text = "Kernel Stage Timings"
	p.X.Label.Text = "Line"
	p.Y.Label.Text = "Milliseconds"

	stages := make([]string, 0, len(lp.timings))
	for stage := range lp.timings {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	colors := generateColors(len(stages))
	for i, stage := range stages {
		vals := lp.timings[stage]
		if len(vals) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(vals))
		for j, v := range vals {
			pts[j] = plotter.XY{X: float64(j), Y: v}
		}

		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = colors[i]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(stage, l)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(lp.outputDir, "kernel_timings.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save timing plot: %w", err)
	}
	return nil
}

// GetOutputDir returns the current output directory for plots.
func (lp *LinePlotter) GetOutputDir() string {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.outputDir
}

// LineCount returns the number of lines recorded for plotting.
func (lp *LinePlotter) LineCount() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.lines)
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for plots:
// plots/<tag>/<timestamp>, or plots/run_<timestamp> when tag is empty.
func MakePlotOutputDir(baseDir, tag string) string {
	ts := FormatTimestamp(time.Now())
	if tag != "" {
		return filepath.Join(baseDir, tag, ts)
	}
	return filepath.Join(baseDir, "run_"+ts)
}

// generateColors creates a palette of distinct colors for line traces
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
