// Command wsa-capture is a thin demo binary driving
// alloc -> configure -> capture -> free against a real device address.
// It is explicitly a demonstration of the library, not the interactive
// CLI that is out of scope for the driver itself.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/cwsl/wsasweep"
)

func main() {
	host := flag.String("host", "", "instrument hostname or IP")
	ctrlPort := flag.Int("ctrl-port", wsa.DefaultControlPort, "control socket port")
	dataPort := flag.Int("data-port", wsa.DefaultDataPort, "data socket port")
	fstart := flag.Uint64("fstart", 2_400_000_000, "sweep start frequency in Hz")
	fstop := flag.Uint64("fstop", 2_500_000_000, "sweep stop frequency in Hz")
	rbw := flag.Uint("rbw", 50_000, "resolution bandwidth in Hz")
	mode := flag.String("mode", "SHN", "receiver mode (SH, SHN, DD)")
	atten := flag.Uint("atten", 0, "attenuator setting in dB")
	debugMask := flag.Uint("debug", uint(wsa.DebugError|wsa.DebugWarn), "debug bitmask")

	flag.Parse()

	if *host == "" {
		log.Fatal("-host is required")
	}

	logger := wsa.NewLogger(wsa.DebugBit(*debugMask))

	dev, err := wsa.Open(*host, *ctrlPort, *dataPort, logger)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	defer dev.Close()

	sd := wsa.NewSweepDevice(dev)
	sd.SetAttenuator(uint32(*atten))

	cfg, err := sd.AllocPowerSpectrum(*fstart, *fstop, uint32(*rbw), *mode)
	if err != nil {
		log.Fatalf("alloc failed: %v", err)
	}
	defer sd.FreePowerSpectrum(cfg)

	if err := sd.ConfigureSweep(cfg); err != nil {
		log.Fatalf("configure failed: %v", err)
	}

	spectrum, err := sd.CapturePowerSpectrum(cfg)
	if err != nil {
		log.Fatalf("capture failed: %v", err)
	}

	if gaps := wsa.ScanForPoison(cfg); len(gaps) > 0 {
		log.Printf("warning: %d bins never filled (gap or data loss)", len(gaps))
	}

	peakFreq, peakAmp, ok := wsa.PeakFind(cfg)
	if ok {
		fmt.Printf("peak: %d Hz at %.1f dBm\n", peakFreq, peakAmp)
	}

	for i, v := range spectrum {
		freq := cfg.FStartActual + uint64(i)*uint64(*rbw)
		fmt.Printf("%d\t%.2f\n", freq, v)
	}
}
