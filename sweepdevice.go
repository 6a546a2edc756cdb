package wsa

import "math"

// DefaultAttenuatorDB is the facade's default attenuator setting.
const DefaultAttenuatorDB = 0

// SweepDevice is the public entry point described in §4.10: it owns a
// borrowed *Device (the sweep device never closes it), the planner
// state implicit in each PowerSpectrumConfig, and the attenuator
// setting.
type SweepDevice struct {
	dev        *Device
	attenuator uint32
	sweeping   bool
}

// NewSweepDevice wraps an already-open Device. The facade borrows dev;
// it is the caller's responsibility to Close it.
func NewSweepDevice(dev *Device) *SweepDevice {
	return &SweepDevice{dev: dev, attenuator: DefaultAttenuatorDB}
}

func (sd *SweepDevice) SetAttenuator(db uint32) { sd.attenuator = db }
func (sd *SweepDevice) GetAttenuator() uint32   { return sd.attenuator }

// AllocPowerSpectrum calls the planner and, on success, allocates the
// config's output buffer of BufLen bins, filled with PoisonSentinel.
// CapturePowerSpectrum replaces it with a freshly poisoned buffer right
// before each sweep runs (§4.9's precondition).
func (sd *SweepDevice) AllocPowerSpectrum(fstart, fstop uint64, rbw uint32, modeStr string) (*PowerSpectrumConfig, error) {
	mode := ParseMode(modeStr)
	cfg, err := PlanSweep(sd.dev.Descriptor, mode, fstart, fstop, rbw)
	if err != nil {
		return nil, err
	}
	cfg.Buf = make([]float32, cfg.BufLen)
	for i := range cfg.Buf {
		cfg.Buf[i] = PoisonSentinel
	}
	return cfg, nil
}

// ConfigureSweep delegates to the sweep loader (C8).
func (sd *SweepDevice) ConfigureSweep(cfg *PowerSpectrumConfig) error {
	return ConfigureSweep(sd.dev, cfg, sd.attenuator)
}

// CapturePowerSpectrum delegates to C9. The returned slice is borrowed
// from cfg and lives until FreePowerSpectrum(cfg); re-entry is
// prevented (a second sweep while one is running returns
// SweepAlreadyRunning).
func (sd *SweepDevice) CapturePowerSpectrum(cfg *PowerSpectrumConfig) ([]float32, error) {
	if sd.sweeping {
		return nil, ErrSweepAlreadyRunning
	}
	sd.sweeping = true
	defer func() { sd.sweeping = false }()

	return CapturePowerSpectrum(sd.dev, cfg)
}

// FreePowerSpectrum walks and releases every plan entry, then the
// buffer, then the config (§4.10). In Go there is nothing to manually
// free, but the walk-and-clear keeps a caller from mistakenly holding
// onto the old slice after nominal release and mirrors the explicit
// free step the spec's public API surface names.
func (sd *SweepDevice) FreePowerSpectrum(cfg *PowerSpectrumConfig) {
	if cfg == nil {
		return
	}
	cfg.Plan = nil
	cfg.Buf = nil
	cfg.BufLen = 0
}

// PeakFind is a thin argmax wrapper over an already-captured power
// spectrum (SPEC_FULL.md §C.4): it does not run a parallel pipeline,
// only scans cfg.Buf for its strongest bin and maps that bin back to
// a frequency via FStartActual/RBW.
func PeakFind(cfg *PowerSpectrumConfig) (freqHz uint64, amplitudeDBm float32, ok bool) {
	if cfg == nil || len(cfg.Buf) == 0 {
		return 0, 0, false
	}
	bestIdx := -1
	best := float32(math.Inf(-1))
	for i, v := range cfg.Buf {
		if v == PoisonSentinel {
			continue
		}
		if v > best {
			best = v
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0, 0, false
	}
	freq := cfg.FStartActual + uint64(bestIdx)*uint64(cfg.RBW)
	return freq, best, true
}
