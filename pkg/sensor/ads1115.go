package sensor

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	// PGA ±4.096V
	ads1115FullScale = 4.096
)

// ADS1115Sensor samples one single-ended channel of an ADS1115 and reports it
// in the 12-bit 0..ADCMax domain referenced to ADCRefVolts.
type ADS1115Sensor struct {
	dev        *i2c.Dev
	channel    int
	sampleRate int
}

func NewADS1115Sensor(bus i2c.Bus, addr uint16, channel, sampleRate int) (*ADS1115Sensor, error) {
	s := &ADS1115Sensor{dev: &i2c.Dev{Addr: addr, Bus: bus}, channel: channel, sampleRate: sampleRate}
	if _, _, err := s.configForChannel(channel, sampleRate); err != nil {
		return nil, err
	}
	return s, nil
}

// Close is a no-op; the bus is owned by the caller.
func (s *ADS1115Sensor) Close() error { return nil }

func (s *ADS1115Sensor) ReadRaw() (int, error) {
	msb, lsb, err := s.configForChannel(s.channel, s.sampleRate)
	if err != nil {
		return 0, err
	}
	if err := s.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	// wait for conversion (simple sleep)
	delayMs := int(1000.0/float64(s.sampleRate)) + 2
	time.Sleep(time.Duration(delayMs) * time.Millisecond)
	readBuf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return countsFromConversion(raw), nil
}

// countsFromConversion rescales a signed 16-bit conversion into 12-bit counts
// relative to ADCRefVolts. Negative and over-range values are clamped.
func countsFromConversion(raw int16) int {
	volts := float64(raw) * ads1115FullScale / 32768.0
	counts := int(math.Round(volts / ADCRefVolts * ADCMax))
	if counts < 0 {
		return 0
	}
	if counts > ADCMax {
		return ADCMax
	}
	return counts
}

func (s *ADS1115Sensor) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	pga := byte(0x1)
	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator disabled
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
