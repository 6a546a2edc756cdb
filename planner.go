package wsa

// Hardware SPP/PPB constraints (§4.7 step 3). SPPMultiple is the
// granularity required_points is rounded up to before the spp/ppb
// split.
const (
	MinSPP      = 2048
	MaxSPP      = 65536
	SPPMultiple = 1024
)

// SweepPlanEntry is one tuning step (§3). Entries are ordered as a
// linked sequence; one planner run produces one list, owned
// exclusively by the PowerSpectrumConfig that requested it.
type SweepPlanEntry struct {
	FCStart uint64 // Hz, inclusive centre frequency
	FCStop  uint64 // Hz, inclusive centre frequency
	FStep   uint64 // Hz
	SPP     uint32
	PPB     uint32
	DDMode  bool
}

// PowerSpectrumConfig owns the planner's inputs and outputs, the
// sweep plan list, and the float output buffer. It is allocated by
// AllocPowerSpectrum and released by FreePowerSpectrum, which walk
// and release the plan list before the buffer.
type PowerSpectrumConfig struct {
	Mode Mode

	ReqFStart uint64
	ReqFStop  uint64
	RBW       uint32

	SPP          uint32
	PPB          uint32
	OnlyDD       bool
	PacketTotal  uint64
	FStartActual uint64
	FStopActual  uint64

	Plan []SweepPlanEntry

	Buf    []float32
	BufLen int
}

// PoisonSentinel is written into every output bin before capture so
// unfilled bins (gaps, data loss) can be detected afterward. It is
// chosen well outside any plausible dBm reading.
const PoisonSentinel float32 = -999.0

// PlanSweep runs the §4.7 algorithm against desc and returns the
// resulting PowerSpectrumConfig (without its output buffer allocated
// — AllocPowerSpectrum does that after a successful plan).
func PlanSweep(desc DeviceDescriptor, mode Mode, fstart, fstop uint64, rbw uint32) (*PowerSpectrumConfig, error) {
	if rbw == 0 || fstop < fstart+uint64(rbw) {
		return nil, newErr(KindValidation, CodeBadFreqRange, "PlanSweep", "fstop must be >= fstart + rbw")
	}
	if fstart < desc.MinTuneFreq || fstop > desc.MaxTuneFreq {
		return nil, newErr(KindValidation, CodeFreqOutOfBound, "PlanSweep", "requested range outside device tuning range")
	}
	props, ok := ModePropertiesFor(mode)
	if !ok {
		return nil, newErr(KindValidation, CodeUnsupportedMode, "PlanSweep", "mode has no implemented capture geometry: "+mode.String())
	}

	cfg := &PowerSpectrumConfig{
		Mode:      mode,
		ReqFStart: fstart,
		ReqFStop:  fstop,
		RBW:       rbw,
	}

	requiredPoints := ceilDiv64(props.FullBW, uint64(rbw))
	requiredPoints = roundUpToMultiple(requiredPoints, SPPMultiple)
	if props.SampleType == SampleRealI {
		requiredPoints *= 2
	}

	spp, ppb := chooseSPPAndPPB(requiredPoints)
	cfg.SPP = spp
	cfg.PPB = ppb

	needDD := fstart < props.MinTunable
	cfg.OnlyDD = needDD && fstop < props.MinTunable

	var ddEntry *SweepPlanEntry
	if needDD {
		ddStop := fstop
		if props.MinTunable < ddStop {
			ddStop = props.MinTunable
		}
		ddEntry = &SweepPlanEntry{FCStart: fstart, FCStop: ddStop, FStep: 1, SPP: spp, PPB: ppb, DDMode: true}
	}

	var fcstart uint64
	if needDD {
		fcstart = props.MinTunable + props.UsableBW/2
	} else {
		fcstart = fstart + props.UsableBW/2
	}
	fcstart = quantizeDown(fcstart, props.TuningResolution)

	// fstart_actual tracks the requested start, grid-aligned, whether
	// or not a DD segment is needed (original_source/wsa_sweep_device.c
	// wsa_plan_sweep: "fstart_actual is the requested start frequency,
	// whether DD mode or not").
	fstartActual := quantizeDown(fstart, props.TuningResolution)

	var fstep uint64
	if props.UsableBW > uint64(rbw) {
		fstep = quantizeDown(props.UsableBW-uint64(rbw), props.TuningResolution)
	}
	if fstep == 0 {
		fstep = props.TuningResolution
	}

	fcstop := smallestMultipleAtOrAbove(fcstart, fstep, fstop)
	if fcstop < fcstart {
		fcstop = fcstart
	}
	if fcstop >= desc.MaxTuneFreq {
		fcstop -= fstep
	}
	fstopActual := fcstop + props.UsableBW/2

	entries := make([]SweepPlanEntry, 0, 2)
	if ddEntry != nil {
		entries = append(entries, *ddEntry)
	}
	if !cfg.OnlyDD {
		entries = append(entries, SweepPlanEntry{FCStart: fcstart, FCStop: fcstop, FStep: fstep, SPP: spp, PPB: ppb})
	}
	cfg.Plan = entries

	// block_count always includes the tuned segment's step count, plus
	// one more if a DD segment is present — unconditionally, even when
	// only_dd collapses fcstop to fcstart (original source carries the
	// same formula here with its own noted uncertainty about whether DD
	// truly needs only one block).
	blockCount := uint64(1)
	if fcstop > fcstart {
		blockCount += (fcstop - fcstart) / fstep
	}
	if ddEntry != nil {
		blockCount++
	}
	cfg.PacketTotal = blockCount * uint64(ppb)

	cfg.FStartActual = fstartActual
	cfg.FStopActual = fstopActual
	cfg.BufLen = int((fstopActual - fstartActual) / uint64(rbw))

	return cfg, nil
}

// chooseSPPAndPPB implements §4.7 step 3.
func chooseSPPAndPPB(requiredPoints uint64) (spp, ppb uint32) {
	switch {
	case requiredPoints > MaxSPP:
		spp = MaxSPP
		ppb = uint32(ceilDiv64(requiredPoints, MaxSPP))
	case requiredPoints < MinSPP:
		spp = MinSPP
		ppb = 1
	default:
		spp = uint32(requiredPoints)
		ppb = 1
	}
	return spp, ppb
}

func ceilDiv64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundUpToMultiple(v, multiple uint64) uint64 {
	if multiple == 0 {
		return v
	}
	return ceilDiv64(v, multiple) * multiple
}

// quantizeDown truncates v down to the nearest multiple of step
// (truncate-toward-zero for the start of a grid, per §4.7 tie-break).
func quantizeDown(v, step uint64) uint64 {
	if step == 0 {
		return v
	}
	return (v / step) * step
}

// smallestMultipleAtOrAbove returns the smallest value of the form
// base + k*step (k >= 0) that is >= target. When target falls exactly
// on a grid multiple, the result equals target (§4.7 tie-break).
func smallestMultipleAtOrAbove(base, step, target uint64) uint64 {
	if target <= base {
		return base
	}
	k := ceilDiv64(target-base, step)
	return base + k*step
}
