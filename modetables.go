package wsa

// Mode is the tagged receiver front-end mode. Modes are sent/received
// as uppercase ASCII on the wire; String/ParseMode are the only place
// that should branch on the raw text.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeZIF
	ModeHDR
	ModeSH
	ModeSHN
	ModeDecSH
	ModeDecSHN
	ModeIQIN
	ModeDD
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeZIF:
		return "ZIF"
	case ModeHDR:
		return "HDR"
	case ModeSH:
		return "SH"
	case ModeSHN:
		return "SHN"
	case ModeDecSH:
		return "DEC-SH"
	case ModeDecSHN:
		return "DEC-SHN"
	case ModeIQIN:
		return "IQIN"
	case ModeDD:
		return "DD"
	case ModeAuto:
		return "AUTO"
	default:
		return "UNKNOWN"
	}
}

// ParseMode maps a wire-format mode string to a Mode, case-insensitive.
func ParseMode(s string) Mode {
	switch toUpperASCII(s) {
	case "ZIF":
		return ModeZIF
	case "HDR":
		return ModeHDR
	case "SH":
		return ModeSH
	case "SHN":
		return ModeSHN
	case "DEC-SH":
		return ModeDecSH
	case "DEC-SHN":
		return ModeDecSHN
	case "IQIN":
		return ModeIQIN
	case "DD":
		return ModeDD
	case "AUTO":
		return ModeAuto
	default:
		return ModeUnknown
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// SampleType distinguishes complex IQ streams from real I-only streams.
type SampleType int

const (
	SampleComplexIQ SampleType = iota
	SampleRealI
)

// ModeProperties describes the fixed capture geometry of one Mode.
// Invariants: UsableLeft < PassbandCenter < UsableRight;
// UsableRight-UsableLeft == UsableBW; TuningResolution evenly divides
// the device's step grid.
type ModeProperties struct {
	SampleType       SampleType
	FreqShiftAllowed bool
	MinTunable       uint64 // Hz
	MaxTunable       uint64 // Hz
	TuningResolution uint64 // Hz
	FullBW           uint64 // Hz, total sampled bandwidth per segment
	UsableBW         uint64 // Hz
	PassbandCenter   uint64 // Hz, offset inside FullBW
	UsableLeft       uint64 // Hz, offset inside FullBW
	UsableRight      uint64 // Hz, offset inside FullBW
	MinDecimation    uint32
	MaxDecimation    uint32
}

// modeTable holds the static per-mode geometry, the WSA-family analog
// of the teacher's per-product static lookup in radiod_status.go's
// tag-keyed decode table. Only SH, SHN, and DD have rows: those are the
// only modes the device's own sweep-properties table
// (wsa_sweep_device_properties[]) defines, and the only ones with an
// implemented capture geometry. ZIF, HDR, IQIN, and the decimated
// variants are valid wire-level Mode values (settable, parseable) but
// have no row here, so ModePropertiesFor reports them unsupported.
var modeTable = map[Mode]ModeProperties{
	ModeSHN: {
		SampleType:       SampleRealI,
		FreqShiftAllowed: true,
		MinTunable:       50_000_000,
		MaxTunable:       27_000_000_000,
		TuningResolution: 10,
		FullBW:           62_500_000,
		UsableBW:         10_000_000,
		PassbandCenter:   35_000_000,
		UsableLeft:       30_000_000,
		UsableRight:      40_000_000,
		MinDecimation:    4,
		MaxDecimation:    512,
	},
	ModeSH: {
		SampleType:       SampleRealI,
		FreqShiftAllowed: true,
		MinTunable:       50_000_000,
		MaxTunable:       27_000_000_000,
		TuningResolution: 10,
		FullBW:           62_500_000,
		UsableBW:         40_000_000,
		PassbandCenter:   35_000_000,
		UsableLeft:       15_000_000,
		UsableRight:      55_000_000,
		MinDecimation:    4,
		MaxDecimation:    512,
	},
	ModeDD: {
		SampleType:       SampleRealI,
		FreqShiftAllowed: true,
		MinTunable:       50_000_000,
		MaxTunable:       27_000_000_000,
		TuningResolution: 10,
		FullBW:           62_500_000,
		UsableBW:         50_000_000,
		PassbandCenter:   31_250_000,
		UsableLeft:       0,
		UsableRight:      50_000_000,
		MinDecimation:    1,
		MaxDecimation:    1,
	},
}

// ModePropertiesFor returns the static ModeProperties for m, and false
// if the mode has no implemented capture geometry (spec §4.7 step 1:
// "mode is supported (has a ModeProperties row)").
func ModePropertiesFor(m Mode) (ModeProperties, bool) {
	p, ok := modeTable[m]
	return p, ok
}
