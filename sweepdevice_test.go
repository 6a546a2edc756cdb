package wsa

import "testing"

func TestPeakFindFindsStrongestBin(t *testing.T) {
	cfg := &PowerSpectrumConfig{
		FStartActual: 2_400_000_000,
		RBW:          50_000,
		Buf:          []float32{-80, -40, -90, PoisonSentinel, -60},
	}
	freq, amp, ok := PeakFind(cfg)
	if !ok {
		t.Fatalf("expected PeakFind to succeed")
	}
	if amp != -40 {
		t.Fatalf("expected peak amplitude -40, got %v", amp)
	}
	wantFreq := cfg.FStartActual + 1*uint64(cfg.RBW)
	if freq != wantFreq {
		t.Fatalf("expected peak freq %d, got %d", wantFreq, freq)
	}
}

func TestPeakFindAllPoisonReturnsNotOK(t *testing.T) {
	cfg := &PowerSpectrumConfig{Buf: []float32{PoisonSentinel, PoisonSentinel}}
	_, _, ok := PeakFind(cfg)
	if ok {
		t.Fatalf("expected PeakFind to fail when every bin is poisoned")
	}
}

func TestFreePowerSpectrumClearsConfig(t *testing.T) {
	cfg := &PowerSpectrumConfig{
		Plan:   []SweepPlanEntry{{FCStart: 1}},
		Buf:    []float32{1, 2, 3},
		BufLen: 3,
	}
	sd := &SweepDevice{}
	sd.FreePowerSpectrum(cfg)
	if cfg.Plan != nil || cfg.Buf != nil || cfg.BufLen != 0 {
		t.Fatalf("expected FreePowerSpectrum to clear plan/buf/buflen, got %+v", cfg)
	}
}

func TestSweepDeviceAttenuator(t *testing.T) {
	sd := &SweepDevice{attenuator: DefaultAttenuatorDB}
	sd.SetAttenuator(20)
	if sd.GetAttenuator() != 20 {
		t.Fatalf("expected attenuator 20, got %d", sd.GetAttenuator())
	}
}

func TestCapturePowerSpectrumRejectsReentry(t *testing.T) {
	sd := &SweepDevice{sweeping: true}
	_, err := sd.CapturePowerSpectrum(&PowerSpectrumConfig{})
	if err != ErrSweepAlreadyRunning {
		t.Fatalf("expected ErrSweepAlreadyRunning, got %v", err)
	}
}
