package main

import (
	"math"
	"testing"
)

func TestBuildExcitation(t *testing.T) {
	ex := buildExcitation(5e6, 100e6)

	if len(ex.Samples) == 0 {
		t.Fatal("expected non-empty excitation")
	}
	if len(ex.Samples)%2 == 0 {
		t.Errorf("expected odd sample count, got %d", len(ex.Samples))
	}
	if ex.CenterIndex != len(ex.Samples)/2 {
		t.Errorf("CenterIndex = %d, want %d", ex.CenterIndex, len(ex.Samples)/2)
	}
	if ex.SamplingFrequency != 100e6 {
		t.Errorf("SamplingFrequency = %f, want 100e6", ex.SamplingFrequency)
	}
	if ex.DemodFrequency != 5e6 {
		t.Errorf("DemodFrequency = %f, want 5e6", ex.DemodFrequency)
	}

	// The pulse amplitude should be bounded by the Gaussian window
	for i, s := range ex.Samples {
		if math.Abs(s) > 1.0 {
			t.Errorf("sample %d out of range: %f", i, s)
		}
	}
}

func TestBuildSequence(t *testing.T) {
	seq := buildSequence(8, 0.09)

	if seq.NumLines() != 8 {
		t.Fatalf("NumLines = %d, want 8", seq.NumLines())
	}
	if seq.LineLength != 0.09 {
		t.Errorf("LineLength = %f, want 0.09", seq.LineLength)
	}

	// Lateral sweep: first and last origin straddle the center
	first := seq.Lines[0].Origin.X
	last := seq.Lines[7].Origin.X
	if first >= 0 || last <= 0 {
		t.Errorf("expected symmetric sweep, got first %f last %f", first, last)
	}
	if math.Abs(first+last) > 1e-12 {
		t.Errorf("expected symmetric origins, got %f and %f", first, last)
	}

	// Timestamps increase monotonically within [0, 1)
	for i := 1; i < 8; i++ {
		if seq.Lines[i].Timestamp <= seq.Lines[i-1].Timestamp {
			t.Errorf("timestamps not increasing at line %d", i)
		}
	}
}

func TestBuildPhantomDeterministic(t *testing.T) {
	a := buildPhantom(100, 0.09, 42)
	b := buildPhantom(100, 0.09, 42)

	if a.NumScatterers() != 100 {
		t.Fatalf("NumScatterers = %d, want 100", a.NumScatterers())
	}
	for i := range a.Scatterers {
		if a.Scatterers[i] != b.Scatterers[i] {
			t.Fatal("expected identical phantoms for identical seeds")
		}
	}

	c := buildPhantom(100, 0.09, 43)
	same := true
	for i := range a.Scatterers {
		if a.Scatterers[i] != c.Scatterers[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different phantoms for different seeds")
	}

	for _, s := range a.Scatterers {
		if s.Pos.Z < 0 || s.Pos.Z > 0.09 {
			t.Errorf("scatterer depth %f outside line length", s.Pos.Z)
		}
	}
}

func TestPeakEnvelopeDB(t *testing.T) {
	lines := [][]complex128{
		{complex(0.5, 0), complex(0, 0)},
		{complex(0, 1), complex(0.25, 0)},
	}
	if got := peakEnvelopeDB(lines); math.Abs(got-0) > 1e-9 {
		t.Errorf("peakEnvelopeDB = %f, want 0 dB for unit peak", got)
	}

	if got := peakEnvelopeDB(nil); !math.IsInf(got, -1) {
		t.Errorf("peakEnvelopeDB(nil) = %f, want -Inf", got)
	}
}
