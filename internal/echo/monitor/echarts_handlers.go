package monitor

import (
	"bytes"
	"fmt"
	"math/cmplx"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleLinesChart renders the envelope of the most recent simulated lines
// as an HTML line chart using go-echarts. This is a debugging-only endpoint
// (no auth) to visually inspect output without any external tooling.
// Query params:
//   - max_lines (optional; default 8) to reduce payload size
func (ws *WebServer) handleLinesChart(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	lines := ws.lines
	samplingFrequency := ws.samplingFrequency
	decimation := ws.radialDecimation
	ws.mu.Unlock()

	if len(lines) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no simulated lines available")
		return
	}

	maxLines := 8
	if ml := r.URL.Query().Get("max_lines"); ml != "" {
		if v, err := strconv.Atoi(ml); err == nil && v > 0 && v <= 64 {
			maxLines = v
		}
	}
	if len(lines) < maxLines {
		maxLines = len(lines)
	}

	// X axis in microseconds of round-trip time per retained sample.
	numSamples := 0
	for _, l := range lines[:maxLines] {
		if len(l) > numSamples {
			numSamples = len(l)
		}
	}
	if decimation < 1 {
		decimation = 1
	}
	x := make([]string, numSamples)
	for i := range x {
		if samplingFrequency > 0 {
			us := float64(i*decimation) / samplingFrequency * 1e6
			x[i] = fmt.Sprintf("%.2f", us)
		} else {
			x[i] = strconv.Itoa(i)
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Echo Lines (Envelope)", Theme: "dark", Width: "1200px", Height: "700px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Simulated Echo Lines", Subtitle: fmt.Sprintf("lines=%d samples=%d decimation=%d", maxLines, numSamples, decimation)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (us)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Envelope", NameLocation: "middle", NameGap: 40}),
	)

	line.SetXAxis(x)
	for i := 0; i < maxLines; i++ {
		env := envelope(lines[i])
		data := make([]opts.LineData, len(env))
		for j, v := range env {
			data[j] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("line %d", i), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTimingsChart renders a bar chart of mean per-stage kernel timings.
func (ws *WebServer) handleTimingsChart(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	timings := ws.timings
	ws.mu.Unlock()

	if len(timings) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no kernel timings available")
		return
	}

	stages := make([]string, 0, len(timings))
	for stage := range timings {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	x := make([]string, 0, len(stages))
	y := make([]opts.BarData, 0, len(stages))
	for _, stage := range stages {
		vals := timings[stage]
		if len(vals) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		x = append(x, stage)
		y = append(y, opts.BarData{Value: sum / float64(len(vals))})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Kernel Stage Timings", Subtitle: "mean per line (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("mean ms", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// envelope returns the magnitude of each sample in a line.
func envelope(line []complex128) []float64 {
	out := make([]float64, len(line))
	for i, v := range line {
		out[i] = cmplx.Abs(v)
	}
	return out
}
