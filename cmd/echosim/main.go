package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/echo.sim/internal/config"
	"github.com/banshee-data/echo.sim/internal/echo"
	"github.com/banshee-data/echo.sim/internal/echo/monitor"
	sqlite "github.com/banshee-data/echo.sim/internal/echo/storage/sqlite"
	"github.com/banshee-data/echo.sim/internal/units"
	"github.com/banshee-data/echo.sim/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to tuning config JSON (optional)")
	dbFile        = flag.String("db", "", "Path to the SQLite run database (empty: disable recording)")
	plotDir       = flag.String("plots", "", "Base directory for PNG plots (empty: disable plotting)")
	listen        = flag.String("listen", "", "HTTP listen address for the debug server (empty: disable)")
	numLines      = flag.Int("lines", 64, "Number of scan lines to simulate")
	lineLength    = flag.Float64("depth", 0.09, "Scan line length in meters")
	numScatterers = flag.Int("scatterers", 2000, "Number of phantom scatterers")
	centerFreq    = flag.Float64("fc", 5e6, "Excitation center frequency in Hz")
	samplingFreq  = flag.Float64("fs", 100e6, "Sampling frequency in Hz")
	phantomSeed   = flag.Uint64("seed", 1, "Phantom generation seed")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

// buildExcitation creates a Gaussian-windowed sinusoidal pulse centered on
// its peak sample.
func buildExcitation(fc, fs float64) echo.ExcitationSignal {
	numCycles := 3.0
	duration := numCycles / fc
	n := int(duration*fs + 0.5)
	if n%2 == 0 {
		n++
	}
	center := n / 2

	samples := make([]float64, n)
	sigma := duration / 6.0
	for i := range samples {
		t := (float64(i) - float64(center)) / fs
		window := math.Exp(-t * t / (2 * sigma * sigma))
		samples[i] = window * math.Sin(2*math.Pi*fc*t)
	}

	return echo.ExcitationSignal{
		Samples:           samples,
		SamplingFrequency: fs,
		CenterIndex:       center,
		DemodFrequency:    fc,
	}
}

// buildSequence creates a linear sweep of parallel lines along the lateral axis.
func buildSequence(numLines int, lineLength float64) *echo.ScanSequence {
	width := 0.04
	lines := make([]echo.ScanLine, numLines)
	for i := range lines {
		frac := 0.5
		if numLines > 1 {
			frac = float64(i) / float64(numLines-1)
		}
		lines[i] = echo.ScanLine{
			Origin:         echo.Vec3{X: (frac - 0.5) * width},
			Dir:            echo.Vec3{Z: 1},
			LateralDir:     echo.Vec3{X: 1},
			ElevationalDir: echo.Vec3{Y: 1},
			Timestamp:      float64(i) / float64(numLines),
		}
	}
	return &echo.ScanSequence{LineLength: lineLength, Lines: lines}
}

// buildPhantom scatters point targets uniformly through the imaging volume.
func buildPhantom(n int, lineLength float64, seed uint64) *echo.FixedScatterers {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	scatterers := make([]echo.FixedScatterer, n)
	for i := range scatterers {
		scatterers[i] = echo.FixedScatterer{
			Pos: echo.Vec3{
				X: (rng.Float64() - 0.5) * 0.04,
				Y: (rng.Float64() - 0.5) * 0.01,
				Z: rng.Float64() * lineLength,
			},
			Amplitude: rng.Float64()*2 - 1,
		}
	}
	return echo.NewFixedScatterers(scatterers)
}

// peakEnvelopeDB returns the maximum envelope value across all lines in dB
// relative to unity.
func peakEnvelopeDB(lines [][]complex128) float64 {
	peak := 0.0
	for _, line := range lines {
		for _, v := range line {
			m := math.Hypot(real(v), imag(v))
			if m > peak {
				peak = m
			}
		}
	}
	return units.LinearToDB(peak)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("echosim %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	sim := echo.NewSimulator()

	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyTo(sim); err != nil {
		log.Fatalf("Failed to apply config: %v", err)
	}

	// Timing telemetry feeds the plots and the debug server.
	wantDetails := cfg.GetStoreKernelDetails() || *plotDir != "" || *listen != ""
	if wantDetails {
		if err := sim.SetParameter("store_kernel_details", "on"); err != nil {
			log.Fatalf("Failed to enable kernel details: %v", err)
		}
	}

	if err := sim.SetExcitation(buildExcitation(*centerFreq, *samplingFreq)); err != nil {
		log.Fatalf("Failed to set excitation: %v", err)
	}
	if err := sim.SetBeamProfile(echo.NewGaussianBeamProfile(1e-3, 2e-3)); err != nil {
		log.Fatalf("Failed to set beam profile: %v", err)
	}
	if err := sim.SetScanSequence(buildSequence(*numLines, *lineLength)); err != nil {
		log.Fatalf("Failed to set scan sequence: %v", err)
	}
	if err := sim.SetScatterers(buildPhantom(*numScatterers, *lineLength, *phantomSeed)); err != nil {
		log.Fatalf("Failed to set scatterers: %v", err)
	}

	// Optional run recording
	var runs *sqlite.RunStore
	runID := uuid.New().String()
	if *dbFile != "" {
		db, err := sqlite.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer db.Close()
		runs = sqlite.NewRunStore(db)

		paramsJSON, err := json.Marshal(sim.Params())
		if err != nil {
			log.Fatalf("Failed to serialise params: %v", err)
		}
		if err := runs.InsertRun(sqlite.RunRecord{
			RunID:      runID,
			Status:     sqlite.RunStatusRunning,
			Params:     paramsJSON,
			NumLines:   *numLines,
			OutputType: sim.OutputType().String(),
			StartedAt:  time.Now().UTC(),
		}); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
	}

	log.Printf("Simulating %d lines to %s depth with %d scatterers",
		*numLines, fmt.Sprintf("%.1f cm", units.ConvertDepth(*lineLength, units.Centimeters)), *numScatterers)

	start := time.Now()
	lines, err := sim.SimulateLines()
	elapsed := time.Since(start)
	if err != nil {
		if runs != nil {
			if ferr := runs.FailRun(runID, err.Error(), time.Now().UTC()); ferr != nil {
				log.Printf("Failed to record run failure: %v", ferr)
			}
		}
		log.Fatalf("Simulation failed: %v", err)
	}

	samplesPerLine := 0
	if len(lines) > 0 {
		samplesPerLine = len(lines[0])
	}
	log.Printf("Simulated %d lines (%d samples each) in %s, peak envelope %.1f dB",
		len(lines), samplesPerLine, elapsed.Round(time.Microsecond), peakEnvelopeDB(lines))

	if runs != nil {
		var timingsJSON json.RawMessage
		if dd := sim.DebugData(); dd != nil {
			timingsJSON, err = json.Marshal(dd)
			if err != nil {
				log.Fatalf("Failed to serialise timings: %v", err)
			}
		}
		if err := runs.CompleteRun(runID, timingsJSON, time.Now().UTC()); err != nil {
			log.Fatalf("Failed to complete run record: %v", err)
		}
		log.Printf("Recorded run %s", runID)
	}

	if *plotDir != "" {
		plotter := monitor.NewLinePlotter()
		outDir := monitor.MakePlotOutputDir(*plotDir, "")
		if err := plotter.Start(outDir); err != nil {
			log.Fatalf("Failed to start plotter: %v", err)
		}
		plotter.Record(lines, *samplingFreq, sim.Params().RadialDecimation)
		plotter.RecordTimings(sim.DebugData())
		plotter.Stop()

		count, err := plotter.GeneratePlots()
		if err != nil {
			log.Fatalf("Failed to generate plots: %v", err)
		}
		log.Printf("Wrote %d plot(s) to %s", count, outDir)
	}

	if *listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listen,
			Runs:    runs,
		})
		ws.SetResult(lines, *samplingFreq, sim.Params().RadialDecimation)
		ws.SetTimings(sim.DebugData())

		var wg sync.WaitGroup
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("Debug server error: %v", err)
			}
		}()

		wg.Wait()
		log.Printf("Graceful shutdown complete")
	}
}
