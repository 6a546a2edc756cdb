package wsa

import (
	"log"
	"os"
)

// DebugBit names one category of the process-wide debug mask. The bit
// layout mirrors the original driver's debug flags; it is documented
// for familiarity but not load-bearing — callers may combine bits
// however they like.
type DebugBit uint16

const (
	DebugError DebugBit = 1 << iota
	DebugWarn
	DebugInfo
	DebugConfig
	DebugSweepPlan
	DebugCollect
	DebugSpeed
	DebugPeaks
	DebugFileOut
	DebugSweepCfg
)

// Logger gates stderr debug output behind the bits set in Mask. The
// zero value logs nothing. A nil *Logger is also safe to use (all
// methods become no-ops), so components may hold an optional logger
// field.
type Logger struct {
	Mask   DebugBit
	stdlib *log.Logger
}

// NewLogger returns a Logger writing to os.Stderr with the given mask.
func NewLogger(mask DebugBit) *Logger {
	return &Logger{Mask: mask, stdlib: log.New(os.Stderr, "wsa: ", log.LstdFlags)}
}

func (l *Logger) enabled(bit DebugBit) bool {
	return l != nil && l.stdlib != nil && l.Mask&bit != 0
}

// Logf emits a message when bit is set in the mask.
func (l *Logger) Logf(bit DebugBit, format string, args ...interface{}) {
	if l.enabled(bit) {
		l.stdlib.Printf(format, args...)
	}
}
