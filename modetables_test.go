package wsa

import "testing"

func TestParseModeRoundTrip(t *testing.T) {
	modes := []Mode{ModeZIF, ModeHDR, ModeSH, ModeSHN, ModeDecSH, ModeDecSHN, ModeIQIN, ModeDD, ModeAuto}
	for _, m := range modes {
		s := m.String()
		got := ParseMode(s)
		if got != m {
			t.Fatalf("ParseMode(%q) = %v, want %v", s, got, m)
		}
	}
}

func TestParseModeCaseInsensitive(t *testing.T) {
	if ParseMode("shn") != ModeSHN {
		t.Fatalf("ParseMode should be case-insensitive")
	}
	if ParseMode("bogus") != ModeUnknown {
		t.Fatalf("ParseMode(bogus) should be ModeUnknown")
	}
}

// TestModePropertiesInvariants covers the ModeProperties invariants
// from spec §3: usable_left < passband_center < usable_right, and
// usable_right - usable_left == usable_bw, for every implemented mode.
func TestModePropertiesInvariants(t *testing.T) {
	for mode, props := range modeTable {
		if !(props.UsableLeft < props.PassbandCenter && props.PassbandCenter < props.UsableRight) {
			t.Fatalf("mode %v: expected usable_left < passband_center < usable_right, got %d < %d < %d",
				mode, props.UsableLeft, props.PassbandCenter, props.UsableRight)
		}
		if props.UsableRight-props.UsableLeft != props.UsableBW {
			t.Fatalf("mode %v: usable_right-usable_left = %d, want usable_bw %d", mode, props.UsableRight-props.UsableLeft, props.UsableBW)
		}
	}
}

// TestModePropertiesOnlySHVariantsSupported covers spec §4.7 step 1 and
// scenario S4: only SH, SHN, and DD have an implemented capture
// geometry. ZIF, HDR, IQIN (and the decimated variants) are valid Mode
// values but must report ok=false.
func TestModePropertiesOnlySHVariantsSupported(t *testing.T) {
	for _, m := range []Mode{ModeSH, ModeSHN, ModeDD} {
		if _, ok := ModePropertiesFor(m); !ok {
			t.Fatalf("expected %v to have an implemented capture geometry", m)
		}
	}
	for _, m := range []Mode{ModeZIF, ModeHDR, ModeIQIN, ModeDecSH, ModeDecSHN, ModeAuto} {
		if _, ok := ModePropertiesFor(m); ok {
			t.Fatalf("expected %v to have no implemented capture geometry", m)
		}
	}
}
