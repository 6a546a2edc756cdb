package wsa

import (
	"math"
)

// captureState holds the per-sweep loop variables of §4.9: running
// counters, the latest receiver/digitizer context, and the block
// buffers reused across blocks.
type captureState struct {
	totalPacketCount    uint64
	packetCountInBlock  uint32
	pktFCenter          uint64
	pktRefLevel         float64

	idata    []float64
	fftScratch []float64
	tmpBuffer  []float64

	expectedIFCount   uint8
	expectedCtxCount  uint8
}

// CapturePowerSpectrum orchestrates one sweep: it loops on VRT
// packets, fills block buffers, runs the DSP chain, and copies the
// usable slice into cfg.Buf. Capture ends when cfg.PacketTotal packets
// have been consumed (§4.9). On a VRT read error or NotIQFrame,
// capture aborts and the error propagates; the output buffer is left
// as-is (partially poisoned).
func CapturePowerSpectrum(dev *Device, cfg *PowerSpectrumConfig) ([]float32, error) {
	props, ok := ModePropertiesFor(cfg.Mode)
	if !ok {
		return nil, newErr(KindValidation, CodeUnsupportedMode, "CapturePowerSpectrum", "mode has no implemented capture geometry")
	}

	cfg.Buf = make([]float32, cfg.BufLen)
	for i := range cfg.Buf {
		cfg.Buf[i] = PoisonSentinel
	}

	if err := TriggerSweep(dev); err != nil {
		return nil, err
	}

	reader := NewPacketReader(dev.data, dev.log)

	if len(cfg.Plan) == 0 {
		return nil, ErrSweepListEmpty
	}

	st := &captureState{}
	entryIdx := 0
	entry := cfg.Plan[entryIdx]
	fft := newRealFFT(int(entry.SPP) * int(entry.PPB))
	st.idata = make([]float64, int(entry.SPP)*int(entry.PPB))

	for st.totalPacketCount < cfg.PacketTotal {
		pkt, err := reader.ReadPacket()
		if err != nil {
			return nil, err
		}

		switch {
		case pkt.Header.PacketType == PacketTypeIFData:
			if err := handleIFData(dev, cfg, &entry, st, fft, props, pkt); err != nil {
				return nil, err
			}
			st.totalPacketCount++

			if st.packetCountInBlock == entry.PPB {
				entryIdx++
				if entryIdx < len(cfg.Plan) {
					entry = cfg.Plan[entryIdx]
					if int(entry.SPP)*int(entry.PPB) != len(st.idata) {
						fft = newRealFFT(int(entry.SPP) * int(entry.PPB))
						st.idata = make([]float64, int(entry.SPP)*int(entry.PPB))
					}
				}
				st.packetCountInBlock = 0
			}

		case pkt.Header.StreamID == streamIDReceiverContext:
			if pkt.Receiver.HasRFFreq {
				if pkt.Receiver.RFFreqHz < cfg.FStartActual || pkt.Receiver.RFFreqHz > cfg.FStopActual {
					dev.log.Logf(DebugWarn, "receiver context centre %d Hz outside planned range [%d,%d]", pkt.Receiver.RFFreqHz, cfg.FStartActual, cfg.FStopActual)
				}
				st.pktFCenter = pkt.Receiver.RFFreqHz
			}

		case pkt.Header.StreamID == streamIDDigitizerContext:
			if pkt.Digitizer.HasReferenceLevel {
				st.pktRefLevel = pkt.Digitizer.ReferenceLevelDBm
			}

		case pkt.Header.StreamID == streamIDExtension:
			// reserved for sweep-id correlation; ignored here (§4.9).
		}
	}

	return cfg.Buf, nil
}

// handleIFData decodes one IF-data packet into the block buffer, and
// when the block is complete, runs the DSP chain and copies the
// usable slice into cfg.Buf.
func handleIFData(dev *Device, cfg *PowerSpectrumConfig, entry *SweepPlanEntry, st *captureState, fft *realFFT, props ModeProperties, pkt Packet) error {
	samples, err := DecodeSamples(pkt.Header.StreamID, pkt.IFData)
	if err != nil {
		return err
	}

	offset := int(st.packetCountInBlock) * int(entry.SPP)
	fullScale := FullScaleFor(pkt.Header.StreamID)
	tmp := make([]float64, len(samples.I))
	Normalize(samples.I, fullScale, tmp)
	copy(st.idata[offset:offset+len(tmp)], tmp)

	st.packetCountInBlock++

	if st.packetCountInBlock < entry.PPB {
		return nil
	}

	HanningWindow(st.idata)
	fftout := fft.Transform(st.idata)

	fftlen := len(fftout)
	if pkt.Trailer.SpectralInversion {
		ReverseInPlace(fftout)
	}

	istart, istop := usableRange(entry.DDMode, pkt.Trailer.SpectralInversion, fftlen, props, cfg.ReqFStart, cfg.ReqFStop)

	copySliceToBuffer(cfg, entry, st, fftout, istart, istop)

	return nil
}

// usableRange computes istart/istop per §4.9 step 5.
func usableRange(isDD, inverted bool, fftlen int, props ModeProperties, reqFStart, reqFStop uint64) (int, int) {
	n := float64(fftlen) + 0.5
	fullBW := float64(props.FullBW)

	if isDD {
		istart := int(math.Round(n * float64(reqFStart) / fullBW))
		var istop int
		if reqFStop > props.MinTunable {
			istop = int(math.Round(0.8 * n))
		} else {
			istop = int(math.Round(n * float64(reqFStop) / fullBW))
		}
		return clampRange(istart, istop, fftlen)
	}

	usableLeft := float64(props.UsableLeft)
	usableRight := float64(props.UsableRight)
	var istart, istop int
	if !inverted {
		istart = int(math.Round(n * usableLeft / fullBW))
		istop = int(math.Round(n * usableRight / fullBW))
	} else {
		istart = int(math.Round(n * (fullBW - usableRight) / fullBW))
		istop = int(math.Round(n * (fullBW - usableLeft) / fullBW))
	}
	return clampRange(istart, istop, fftlen)
}

func clampRange(istart, istop, fftlen int) (int, int) {
	if istart < 0 {
		istart = 0
	}
	if istop > fftlen {
		istop = fftlen
	}
	if istop < istart {
		istop = istart
	}
	return istart, istop
}

// copySliceToBuffer computes the destination offset from the latest
// receiver-context centre frequency and copies the dBm-converted
// usable slice into cfg.Buf (§4.9 steps 6-7).
func copySliceToBuffer(cfg *PowerSpectrumConfig, entry *SweepPlanEntry, st *captureState, fftout []complex128, istart, istop int) {
	var bufOffset int
	if entry.DDMode {
		bufOffset = 0
	} else {
		span := cfg.FStopActual - cfg.FStartActual
		if span == 0 {
			bufOffset = 0
		} else {
			frac := float64(st.pktFCenter-cfg.FStartActual) / float64(span)
			centreOffset := int(math.Round(frac * float64(cfg.BufLen)))
			bufOffset = centreOffset - (istop-istart)/2
			if bufOffset < 0 {
				bufOffset = 0
			}
		}
	}

	blockLen := float64(int(entry.SPP) * int(entry.PPB))
	for i := 0; i < istop-istart; i++ {
		if bufOffset+i >= cfg.BufLen {
			break
		}
		power := CpxToPower(fftout[istart+i]) / blockLen
		dBm := 2*math.Log10(power) + st.pktRefLevel - KissFFTOffset
		cfg.Buf[bufOffset+i] = float32(dBm)
	}
}

// ScanForPoison reports the indices of cfg.Buf still holding the
// poison sentinel after a capture, a diagnostic for gap/data-loss
// detection (§4.9 post-check; does not fail the call).
func ScanForPoison(cfg *PowerSpectrumConfig) []int {
	var gaps []int
	for i, v := range cfg.Buf {
		if v == PoisonSentinel {
			gaps = append(gaps, i)
		}
	}
	return gaps
}
