package wsa

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AttenuatorStyle selects how the sweep loader programs attenuation:
// some product subfamilies have a dedicated SCPI command, others fall
// back to the raw INPUT:ATTENUATOR verb (original_source/wsa_api.c
// wsa_set_attenuator).
type AttenuatorStyle int

const (
	AttenuatorRaw AttenuatorStyle = iota
	AttenuatorDedicated
)

// DeviceDescriptor is immutable once populated. It is filled entirely
// from either static per-model tables or device query replies before
// being exposed to callers (Open's postcondition).
type DeviceDescriptor struct {
	ProductModel string
	RFEModel     string
	Firmware     string

	InstantaneousBW uint64 // Hz
	MaxPacketSize   uint32 // bytes

	MinTuneFreq   uint64 // Hz
	MaxTuneFreq   uint64 // Hz
	FreqResolution uint64 // Hz

	MinIFGain int32 // dB
	MaxIFGain int32 // dB

	MinDecimation uint32
	MaxDecimation uint32

	// MaxAmplitudeByRFGain is the absolute max amplitude (dBm) table
	// keyed by RF gain setting ("HIGH", "MED", "LOW", "VLOW").
	MaxAmplitudeByRFGain map[string]float64

	AttenuatorCommandStyle AttenuatorStyle
}

func (d *DeviceDescriptor) validate() error {
	if d.MinTuneFreq > d.MaxTuneFreq {
		return newErr(KindResource, CodeInitFailed, "descriptor", "min_tune_freq > max_tune_freq")
	}
	if d.FreqResolution == 0 {
		return newErr(KindResource, CodeInitFailed, "descriptor", "freq_resolution must be > 0")
	}
	return nil
}

// staticDescriptorTable maps a (product, rfe) tag pair read from
// *IDN? to a pre-populated descriptor, mirroring the teacher's
// tag-keyed static lookup in radiod_status.go.
var staticDescriptorTable = map[string]DeviceDescriptor{
	"R5500/RFE5500": {
		ProductModel:           "R5500",
		RFEModel:               "RFE5500",
		InstantaneousBW:        125_000_000,
		MaxPacketSize:          1024 * 4,
		MinTuneFreq:            50_000_000,
		MaxTuneFreq:            27_000_000_000,
		FreqResolution:         100_000,
		MinIFGain:              -10,
		MaxIFGain:              34,
		MinDecimation:          1,
		MaxDecimation:          512,
		MaxAmplitudeByRFGain:   map[string]float64{"HIGH": -10, "MED": 0, "LOW": 10, "VLOW": 20},
		AttenuatorCommandStyle: AttenuatorDedicated,
	},
	"R5700/RFE5700": {
		ProductModel:           "R5700",
		RFEModel:               "RFE5700",
		InstantaneousBW:        125_000_000,
		MaxPacketSize:          1024 * 4,
		MinTuneFreq:            50_000_000,
		MaxTuneFreq:            40_000_000_000,
		FreqResolution:         100_000,
		MinIFGain:              -10,
		MaxIFGain:              34,
		MinDecimation:          1,
		MaxDecimation:          512,
		MaxAmplitudeByRFGain:   map[string]float64{"HIGH": -10, "MED": 0, "LOW": 10, "VLOW": 20},
		AttenuatorCommandStyle: AttenuatorDedicated,
	},
	"R5000/RFE5000": {
		ProductModel:           "R5000",
		RFEModel:               "RFE5000",
		InstantaneousBW:        125_000_000,
		MaxPacketSize:          1024 * 4,
		MinTuneFreq:            50_000_000,
		MaxTuneFreq:            20_000_000_000,
		FreqResolution:         100_000,
		MinIFGain:              -10,
		MaxIFGain:              34,
		MinDecimation:          1,
		MaxDecimation:          512,
		MaxAmplitudeByRFGain:   map[string]float64{"HIGH": -10, "MED": 0, "LOW": 10, "VLOW": 20},
		AttenuatorCommandStyle: AttenuatorRaw,
	},
}

// Temperature holds the three comma-separated floats returned by
// STAT:TEMP?. The original's field order is unconfirmed against real
// hardware (design notes, Open Questions); we expose named fields so
// a later correction is a rename, not a call-site change.
type Temperature struct {
	RFE     float64
	Mixer   float64
	Digital float64
}

// Device is the host-side handle to one instrument: the two socket
// connections, the negotiated descriptor, and the acquisition-lock
// state. It holds no sweep entry template and has no sweep_-prefixed
// setters; sweep entries are programmed only by ConfigureSweep.
type Device struct {
	ctrl *Channel
	data *dataConn

	control *controlConn

	Descriptor DeviceDescriptor

	haveControl bool
	log         *Logger
}

// DialConfig is covered in config.go; Open takes resolved host/ports
// directly so it has no dependency on the dial-string parser.
func Open(host string, controlPort, dataPort int, log *Logger) (*Device, error) {
	if controlPort == 0 {
		controlPort = DefaultControlPort
	}
	if dataPort == 0 {
		dataPort = DefaultDataPort
	}

	ctrlConn, err := dialControl(fmt.Sprintf("%s:%d", host, controlPort), defaultControlTimeout)
	if err != nil {
		return nil, err
	}
	dConn, err := dialData(fmt.Sprintf("%s:%d", host, dataPort), defaultDataTimeout)
	if err != nil {
		ctrlConn.Close()
		return nil, err
	}

	dev := &Device{
		control: ctrlConn,
		data:    dConn,
		log:     log,
	}
	dev.ctrl = newChannel(ctrlConn, log)

	if err := dev.drainErrors(); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.populateDescriptor(); err != nil {
		dev.Close()
		return nil, wrapErr(KindResource, CodeInitFailed, "Open", "descriptor population failed", err)
	}
	return dev, nil
}

// Close releases both sockets. It does not release the acquisition
// lock server-side beyond what connection teardown implies (§5: the
// lock "is released by connection close").
func (d *Device) Close() error {
	var firstErr error
	if d.control != nil {
		if err := d.control.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.data != nil {
		if err := d.data.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// drainErrors implements the supplemented open sequence
// (SPEC_FULL.md §C.1): read *STB?, and if the event-status bit (bit 5)
// is set, drain SYST:ERR? until it reports no error, logging each one.
func (d *Device) drainErrors() error {
	reply, err := d.ctrl.Query("*STB?")
	if err != nil {
		return err
	}
	stb, err := ParseInt(reply.Text)
	if err != nil {
		return err
	}
	const esbBit = 1 << 5
	if stb&esbBit == 0 {
		return nil
	}
	for i := 0; i < 64; i++ {
		r, err := d.ctrl.Query("SYST:ERR?")
		if err != nil {
			return err
		}
		code, msg := splitSCPIError(r.Text)
		if code == 0 {
			return nil
		}
		d.log.Logf(DebugWarn, "drained pending error %d: %s", code, msg)
	}
	return nil
}

// populateDescriptor reads *IDN? and looks up the static table keyed
// by the product/RFE tag pair, then overlays any firmware-reported
// fields (firmware tag itself is per-device, never static).
func (d *Device) populateDescriptor() error {
	reply, err := d.ctrl.Query("*IDN?")
	if err != nil {
		return err
	}
	fields := strings.Split(reply.Text, ",")
	if len(fields) < 2 {
		return newErr(KindResource, CodeInitFailed, "populateDescriptor", "malformed *IDN? reply: "+reply.Text)
	}
	product := strings.TrimSpace(fields[0])
	rfe := strings.TrimSpace(fields[1])
	firmware := ""
	if len(fields) > 3 {
		firmware = strings.TrimSpace(fields[3])
	}

	key := product + "/" + rfe
	desc, ok := staticDescriptorTable[key]
	if !ok {
		return newErr(KindResource, CodeInitFailed, "populateDescriptor", "no static descriptor for "+key)
	}
	desc.Firmware = firmware
	if err := desc.validate(); err != nil {
		return err
	}
	d.Descriptor = desc
	return nil
}

// AcquireControl requests the server-side acquisition lock (§5).
func (d *Device) AcquireControl() error {
	reply, err := d.ctrl.Query("SYST:LOCK:REQ? ACQ")
	if err != nil {
		return err
	}
	v, err := ParseInt(reply.Text)
	if err != nil {
		return err
	}
	if v == 0 {
		return newErr(KindState, CodeDataAccessDenied, "AcquireControl", "acquisition lock held by another host")
	}
	d.haveControl = true
	return nil
}

// ReleaseControl releases the acquisition lock explicitly (it is also
// released implicitly by closing the connection).
func (d *Device) ReleaseControl() error {
	_, err := d.ctrl.Send("SYST:LOCK:REL ACQ")
	d.haveControl = false
	return err
}

// HasControl polls whether this host currently holds the acquisition
// lock, per original_source/wsa_lib.c's paired acquire/release/poll.
func (d *Device) HasControl() (bool, error) {
	reply, err := d.ctrl.Query("SYST:LOCK:HAVE? ACQ")
	if err != nil {
		return false, err
	}
	v, err := ParseInt(reply.Text)
	if err != nil {
		return false, err
	}
	d.haveControl = v != 0
	return d.haveControl, nil
}

// Temperature reads STAT:TEMP? and parses the three comma-separated
// floats. See Temperature's doc comment for the field-order caveat.
func (d *Device) Temperature() (Temperature, error) {
	reply, err := d.ctrl.Query("STAT:TEMP?")
	if err != nil {
		return Temperature{}, err
	}
	parts := strings.Split(reply.Text, ",")
	if len(parts) != 3 {
		return Temperature{}, newErr(KindProtocol, CodeRespUnknown, "Temperature", "expected 3 comma-separated values, got "+strconv.Itoa(len(parts)))
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := ParseFloat(p)
		if err != nil {
			return Temperature{}, err
		}
		vals[i] = v
	}
	return Temperature{RFE: vals[0], Mixer: vals[1], Digital: vals[2]}, nil
}

// --- Centre frequency ---

func (d *Device) SetFreq(hz uint64) error {
	if hz < d.Descriptor.MinTuneFreq || hz > d.Descriptor.MaxTuneFreq {
		return newErr(KindValidation, CodeFreqOutOfBound, "SetFreq", "frequency out of device tuning range")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("FREQ:CENT %d", hz))
	return err
}

func (d *Device) GetFreq() (uint64, error) {
	reply, err := d.ctrl.Query("FREQ:CENT?")
	if err != nil {
		return 0, err
	}
	v, err := ParseInt(reply.Text)
	if err != nil {
		return 0, err
	}
	v, err = checkRangeInt(v, int64(d.Descriptor.MinTuneFreq), int64(d.Descriptor.MaxTuneFreq), "GetFreq")
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// --- Frequency shift ---

func (d *Device) SetFreqShift(hz int64) error {
	_, err := d.ctrl.Send(fmt.Sprintf("FREQ:SHIFT %d", hz))
	return err
}

// --- Decimation ---

func (d *Device) SetDecimation(rate uint32) error {
	if rate < d.Descriptor.MinDecimation || rate > d.Descriptor.MaxDecimation {
		return newErr(KindValidation, CodeInvDecimationRate, "SetDecimation", "decimation rate out of descriptor range")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("SENSE:DEC %d", rate))
	return err
}

func (d *Device) GetDecimation() (uint32, error) {
	reply, err := d.ctrl.Query("SENSE:DEC?")
	if err != nil {
		return 0, err
	}
	v, err := ParseInt(reply.Text)
	if err != nil {
		return 0, err
	}
	v, err = checkRangeInt(v, int64(d.Descriptor.MinDecimation), int64(d.Descriptor.MaxDecimation), "GetDecimation")
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// --- Antenna port ---

func (d *Device) SetAntennaPort(port int) error {
	if port < 1 || port > 2 {
		return newErr(KindValidation, CodeInvAntennaPort, "SetAntennaPort", "antenna port must be 1 or 2")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("INPUT:PORT %d", port))
	return err
}

// --- Preselect BPF ---

func (d *Device) SetPreselectFilter(on bool) error {
	_, err := d.ctrl.Send("INPUT:FILTER:PRESELECT " + boolOnOff(on))
	return err
}

// --- RF / IF gain ---

func (d *Device) SetRFGain(level string) error {
	switch toUpperASCII(level) {
	case "HIGH", "MED", "LOW", "VLOW":
	default:
		return newErr(KindValidation, CodeInvRfGain, "SetRFGain", "invalid RF gain level: "+level)
	}
	_, err := d.ctrl.Send("INPUT:GAIN:RF " + toUpperASCII(level))
	return err
}

func (d *Device) SetIFGain(db int32) error {
	if db < d.Descriptor.MinIFGain || db > d.Descriptor.MaxIFGain {
		return newErr(KindValidation, CodeInvIfGain, "SetIFGain", "IF gain out of descriptor range")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("INPUT:GAIN:IF %d", db))
	return err
}

// --- Attenuator ---

func (d *Device) SetAttenuator(db uint32) error {
	if db > 30 {
		return newErr(KindValidation, CodeInvAttenuation, "SetAttenuator", "attenuation out of range")
	}
	if d.Descriptor.AttenuatorCommandStyle == AttenuatorDedicated {
		_, err := d.ctrl.Send(fmt.Sprintf("INPUT:ATTENUATOR:STATE %d", boolToInt(db > 0)))
		return err
	}
	_, err := d.ctrl.Send(fmt.Sprintf("INPUT:ATTENUATOR %d", db))
	return err
}

// --- PLL reference source ---

func (d *Device) SetPLLReferenceSource(src string) error {
	switch toUpperASCII(src) {
	case "INT", "EXT":
	default:
		return newErr(KindValidation, CodeInvPllRefSource, "SetPLLReferenceSource", "reference source must be INT or EXT")
	}
	_, err := d.ctrl.Send("SOURCE:REFERENCE:PLL " + toUpperASCII(src))
	return err
}

func (d *Device) ReferenceLocked() (bool, error) {
	reply, err := d.ctrl.Query("LOCK:REFerence?")
	if err != nil {
		return false, err
	}
	v, err := ParseInt(reply.Text)
	return v != 0, err
}

func (d *Device) RFLocked() (bool, error) {
	reply, err := d.ctrl.Query("LOCK:RF?")
	if err != nil {
		return false, err
	}
	v, err := ParseInt(reply.Text)
	return v != 0, err
}

// --- RFE input mode / IQ output mode ---

func (d *Device) SetRFEInputMode(mode Mode) error {
	if mode == ModeUnknown {
		return newErr(KindValidation, CodeInvRfeInputMode, "SetRFEInputMode", "invalid RFE input mode")
	}
	_, err := d.ctrl.Send("INPUT:MODE " + mode.String())
	return err
}

func (d *Device) SetIQOutputMode(mode string) error {
	switch toUpperASCII(mode) {
	case "DIGITIZER", "CONNECTOR":
	default:
		return newErr(KindValidation, CodeInvRfeInputMode, "SetIQOutputMode", "invalid IQ output mode: "+mode)
	}
	_, err := d.ctrl.Send("OUTPUT:MODE " + toUpperASCII(mode))
	return err
}

// --- Samples per packet / packets per block ---

func (d *Device) SetSamplesPerPacket(spp uint32) error {
	if spp < MinSPP || spp > MaxSPP {
		return newErr(KindValidation, CodeInvSampleSize, "SetSamplesPerPacket", "spp out of hardware range")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("TRACE:SPPACKET %d", spp))
	return err
}

func (d *Device) SetPacketsPerBlock(ppb uint32) error {
	if ppb == 0 {
		return newErr(KindValidation, CodeInvSampleSize, "SetPacketsPerBlock", "ppb must be > 0")
	}
	_, err := d.ctrl.Send(fmt.Sprintf("TRACE:BLOCK:PACKETS %d", ppb))
	return err
}

// --- Trigger ---

// TriggerConfig is the trigger state set via the TRIGGER:* verbs.
type TriggerConfig struct {
	Type        string // NONE, LEVEL, PULSE
	FreqLow     uint64
	FreqHigh    uint64
	AmplitudeDB float64
	SyncDelay   uint64 // ns, must be a multiple of 8
	SyncRole    string // MASTER, SLAVE
}

func (d *Device) SetTrigger(cfg TriggerConfig) error {
	switch toUpperASCII(cfg.Type) {
	case "NONE", "LEVEL", "PULSE":
	default:
		return newErr(KindValidation, CodeInvTriggerMode, "SetTrigger", "invalid trigger type: "+cfg.Type)
	}
	if cfg.SyncDelay%8 != 0 {
		return newErr(KindValidation, CodeInvTriggerDelay, "SetTrigger", "sync delay must be a multiple of 8ns")
	}
	if cfg.SyncRole != "" {
		switch toUpperASCII(cfg.SyncRole) {
		case "MASTER", "SLAVE":
		default:
			return newErr(KindValidation, CodeInvTriggerSync, "SetTrigger", "invalid sync role: "+cfg.SyncRole)
		}
	}
	if _, err := d.ctrl.Send("TRIGGER:TYPE " + toUpperASCII(cfg.Type)); err != nil {
		return err
	}
	if toUpperASCII(cfg.Type) == "LEVEL" {
		if _, err := d.ctrl.Send(fmt.Sprintf("TRIGGER:LEVEL %d,%d,%f", cfg.FreqLow, cfg.FreqHigh, cfg.AmplitudeDB)); err != nil {
			return err
		}
	}
	if _, err := d.ctrl.Send(fmt.Sprintf("TRIGGER:DELAY %d", cfg.SyncDelay)); err != nil {
		return err
	}
	if cfg.SyncRole != "" {
		if _, err := d.ctrl.Send("TRIGGER:SYNC " + toUpperASCII(cfg.SyncRole)); err != nil {
			return err
		}
	}
	return nil
}

// SweepTriggerSyncState is the corrected (AND, not OR) form of the
// original's buggy getter (design note Open Questions / SPEC_FULL.md
// §C.7): it reports whether the sweep list's trigger-sync state
// matches both the expected type and role strings.
func (d *Device) SweepTriggerSyncState(wantType, wantRole string) (bool, error) {
	typeReply, err := d.ctrl.Query("SWEEP:LIST:TRIGGER:SYNC:TYPE?")
	if err != nil {
		return false, err
	}
	roleReply, err := d.ctrl.Query("SWEEP:LIST:TRIGGER:SYNC:ROLE?")
	if err != nil {
		return false, err
	}
	match := strings.EqualFold(typeReply.Text, wantType) && strings.EqualFold(roleReply.Text, wantRole)
	return match, nil
}

// SpectralInversionAt queries SENSE:FREQ:INV? for a given centre
// frequency. Per design notes/Open Questions, the capture loop never
// calls this itself — the VRT trailer bit is authoritative — but it
// is exposed for callers who want to cross-check.
func (d *Device) SpectralInversionAt(hz uint64) (bool, error) {
	reply, err := d.ctrl.Query(fmt.Sprintf("SENSE:FREQ:INV? %d", hz))
	if err != nil {
		return false, err
	}
	v, err := ParseInt(reply.Text)
	return v != 0, err
}

func boolOnOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
