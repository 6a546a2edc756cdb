package wsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() DeviceDescriptor {
	return DeviceDescriptor{
		ProductModel:   "R5500",
		RFEModel:       "RFE5500",
		MinTuneFreq:    9_000,
		MaxTuneFreq:    40_000_000_000,
		FreqResolution: 100_000,
		MinIFGain:      -10,
		MaxIFGain:      34,
		MinDecimation:  1,
		MaxDecimation:  512,
	}
}

// TestPlanSweepS1 covers scenario S1 from the spec's testable
// properties: a plain SHN sweep with a modest span.
func TestPlanSweepS1(t *testing.T) {
	desc := testDescriptor()
	cfg, err := PlanSweep(desc, ModeSHN, 2_400_000_000, 2_500_000_000, 50_000)
	require.NoError(t, err)
	assert.Equal(t, 2190, cfg.BufLen)
	assert.GreaterOrEqual(t, cfg.PacketTotal, uint64(3))
	assert.LessOrEqual(t, cfg.FStartActual, uint64(2_400_000_000))
	assert.GreaterOrEqual(t, cfg.FStopActual, uint64(2_500_000_000))
}

// TestPlanSweepS2 covers scenario S2: a DD segment is required because
// the requested start is below the mode's min_tunable.
func TestPlanSweepS2(t *testing.T) {
	desc := testDescriptor()
	cfg, err := PlanSweep(desc, ModeSH, 9_000, 8_000_000_000, 20_000)
	require.NoError(t, err)
	assert.False(t, cfg.OnlyDD)
	require.Len(t, cfg.Plan, 2)
	assert.True(t, cfg.Plan[0].DDMode, "expected first entry to be the DD segment")

	props, ok := ModePropertiesFor(ModeSH)
	require.True(t, ok)
	assert.GreaterOrEqual(t, cfg.Plan[0].FCStop, props.MinTunable, "DD entry should reach at least mode.min_tunable")
	assert.GreaterOrEqual(t, cfg.FStopActual, uint64(8_000_000_000), "fstop_actual must cover requested 8GHz")
}

// TestPlanSweepS3 covers scenario S3: fstop < fstart rejects with
// BadFreqRange and no allocation performed.
func TestPlanSweepS3(t *testing.T) {
	desc := testDescriptor()
	cfg, err := PlanSweep(desc, ModeSH, 2_000_000_000, 1_999_000_000, 1_000)
	require.Error(t, err)
	assert.Nil(t, cfg)

	werr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeBadFreqRange, werr.Code)
}

// TestPlanSweepS4 covers scenario S4: ZIF has no implemented capture
// geometry and should surface UnsupportedMode.
func TestPlanSweepS4(t *testing.T) {
	desc := testDescriptor()
	_, err := PlanSweep(desc, ModeZIF, 2_400_000_000, 2_450_000_000, 10_000)
	require.Error(t, err)

	werr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeUnsupportedMode, werr.Code)
}

// TestPlanSweepSPPInvariants covers invariant 3: spp is a multiple of
// SPPMultiple and stays within [MinSPP, MaxSPP].
func TestPlanSweepSPPInvariants(t *testing.T) {
	desc := testDescriptor()
	rbws := []uint32{1_000, 10_000, 50_000, 200_000, 1_000_000}
	for _, rbw := range rbws {
		cfg, err := PlanSweep(desc, ModeSH, 1_000_000_000, 2_000_000_000, rbw)
		require.NoErrorf(t, err, "rbw=%d", rbw)
		assert.GreaterOrEqualf(t, cfg.SPP, uint32(MinSPP), "rbw=%d", rbw)
		assert.LessOrEqualf(t, cfg.SPP, uint32(MaxSPP), "rbw=%d", rbw)
		assert.Zerof(t, cfg.SPP%SPPMultiple, "rbw=%d: spp %d not a multiple of %d", rbw, cfg.SPP, SPPMultiple)
	}
}

// TestPlanSweepPacketTotalFormula covers invariant 2:
// packet_total == ppb * (1 + floor((fcstop-fcstart)/fstep) + (dd?1:0)).
func TestPlanSweepPacketTotalFormula(t *testing.T) {
	desc := testDescriptor()
	cfg, err := PlanSweep(desc, ModeSH, 1_000_000_000, 3_000_000_000, 100_000)
	require.NoError(t, err)

	var tuned *SweepPlanEntry
	ddPresent := false
	for i := range cfg.Plan {
		if cfg.Plan[i].DDMode {
			ddPresent = true
		} else {
			tuned = &cfg.Plan[i]
		}
	}
	require.NotNil(t, tuned, "expected a tuned entry")

	blocks := uint64(1) + (tuned.FCStop-tuned.FCStart)/tuned.FStep
	if ddPresent {
		blocks++
	}
	want := blocks * uint64(cfg.PPB)
	assert.Equal(t, want, cfg.PacketTotal)
}

// TestPlanSweepIdempotent covers invariant 7: two consecutive
// alloc/free cycles with identical inputs produce identical planner
// outputs.
func TestPlanSweepIdempotent(t *testing.T) {
	desc := testDescriptor()
	cfg1, err := PlanSweep(desc, ModeSHN, 2_400_000_000, 2_500_000_000, 50_000)
	require.NoError(t, err)
	cfg2, err := PlanSweep(desc, ModeSHN, 2_400_000_000, 2_500_000_000, 50_000)
	require.NoError(t, err)

	assert.Equal(t, cfg1.SPP, cfg2.SPP)
	assert.Equal(t, cfg1.PPB, cfg2.PPB)
	assert.Equal(t, cfg1.FStartActual, cfg2.FStartActual)
	assert.Equal(t, cfg1.FStopActual, cfg2.FStopActual)
	assert.Equal(t, cfg1.PacketTotal, cfg2.PacketTotal)
	require.Equal(t, len(cfg1.Plan), len(cfg2.Plan))
	for i := range cfg1.Plan {
		assert.Equal(t, cfg1.Plan[i], cfg2.Plan[i])
	}
}

func TestChooseSPPAndPPB(t *testing.T) {
	cases := []struct {
		required uint64
		wantSPP  uint32
		wantPPB  uint32
	}{
		{100, MinSPP, 1},
		{MinSPP, MinSPP, 1},
		{MinSPP + 1, MinSPP + 1, 1},
		{MaxSPP, MaxSPP, 1},
		{MaxSPP + 1, MaxSPP, 2},
		{MaxSPP*3 + 1, MaxSPP, 4},
	}
	for _, tc := range cases {
		spp, ppb := chooseSPPAndPPB(tc.required)
		assert.Equalf(t, tc.wantSPP, spp, "chooseSPPAndPPB(%d) spp", tc.required)
		assert.Equalf(t, tc.wantPPB, ppb, "chooseSPPAndPPB(%d) ppb", tc.required)
	}
}
