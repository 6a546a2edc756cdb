package wsa

import (
	"fmt"
	"time"
)

// flushDrainWindow is how long ConfigureSweep drains the data socket
// for before assuming it is quiet (§4.8 step 1: "flushes the data
// socket (drain for ~1 s)").
const flushDrainWindow = 1 * time.Second

// ConfigureSweep translates cfg's planned entries into SCPI sweep
// entry commands, resetting and rebuilding the device's sweep list
// (§4.8). All-or-nothing at the contract level: the first SCPI
// failure aborts with its original error code. attenuatorDB is the
// facade-owned attenuator setting (§3 SweepDevice Facade ownership).
func ConfigureSweep(dev *Device, cfg *PowerSpectrumConfig, attenuatorDB uint32) error {
	if _, err := dev.ctrl.Send("*RST"); err != nil {
		return err
	}
	if _, err := dev.ctrl.Send("SYST:ABORT"); err != nil {
		return err
	}
	if err := drainDataSocket(dev, flushDrainWindow); err != nil {
		return err
	}
	if err := dev.AcquireControl(); err != nil {
		return err
	}
	if err := dev.populateDescriptor(); err != nil {
		return err
	}

	if _, err := dev.ctrl.Send("SWEEP:ENTRY:DELETE ALL"); err != nil {
		return err
	}
	if _, err := dev.ctrl.Send("SWEEP:ENTRY:NEW"); err != nil {
		return err
	}
	if _, err := dev.ctrl.Send("SWEEP:LIST:ITER 1"); err != nil {
		return err
	}

	if err := dev.SetAttenuator(attenuatorDB); err != nil {
		return err
	}

	entries := cfg.Plan
	for i, entry := range entries {
		isDD := entry.DDMode
		if isDD {
			if _, err := dev.ctrl.Send("SWEEP:ENTRY:MODE DD"); err != nil {
				return err
			}
			if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:SPPACKET %d", entry.SPP)); err != nil {
				return err
			}
			if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:PPBLOCK %d", entry.PPB)); err != nil {
				return err
			}
			if _, err := dev.ctrl.Send("SWEEP:ENTRY:SAVE 0"); err != nil {
				return err
			}
			continue
		}

		if _, err := dev.ctrl.Send("SWEEP:ENTRY:MODE " + cfg.Mode.String()); err != nil {
			return err
		}
		if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:FREQ:CENT %d,%d", entry.FCStart, entry.FCStop)); err != nil {
			return err
		}
		if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:FREQ:STEP %d", entry.FStep)); err != nil {
			return err
		}
		if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:SPPACKET %d", entry.SPP)); err != nil {
			return err
		}
		if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:PPBLOCK %d", entry.PPB)); err != nil {
			return err
		}
		if cfg.OnlyDD {
			continue
		}
		if _, err := dev.ctrl.Send(fmt.Sprintf("SWEEP:ENTRY:SAVE %d", i+1)); err != nil {
			return err
		}
	}

	return nil
}

// drainDataSocket reads and discards whatever arrives on the data
// socket until window has elapsed. Timeouts and drops during the
// window are ignored; it always returns nil.
func drainDataSocket(dev *Device, window time.Duration) error {
	deadline := time.Now().Add(window)
	buf := make([]byte, 4096)
	origTimeout := dev.data.timeout
	dev.data.timeout = 50 * time.Millisecond
	defer func() { dev.data.timeout = origTimeout }()

	for time.Now().Before(deadline) {
		if err := dev.data.RecvExact(buf[:1]); err != nil {
			// timeout/drop both mean "quiet right now"; keep draining
			// until the window elapses rather than treating this as fatal.
			continue
		}
	}
	return nil
}

// StopSweep issues SWEEP:LIST:STOP (SPEC_FULL.md §C.6), a graceful
// path for a caller aborting mid-capture before resorting to closing
// sockets outright (§5).
func StopSweep(dev *Device) error {
	_, err := dev.ctrl.Send("SWEEP:LIST:STOP")
	return err
}

// ResumeSweep issues SWEEP:LIST:RESUME.
func ResumeSweep(dev *Device) error {
	_, err := dev.ctrl.Send("SWEEP:LIST:RESUME")
	return err
}

// TriggerSweep starts the loaded sweep list (SWEEP:LIST:START), the
// facade's "triggers a sweep" step between ConfigureSweep and the
// capture loop.
func TriggerSweep(dev *Device) error {
	_, err := dev.ctrl.Send("SWEEP:LIST:START")
	return err
}
