package subgrfspy

import (
	"fmt"
	"math"
)

// DefaultCrystal is the CC1111 reference oscillator in Hz.
const DefaultCrystal uint32 = 24000000

// Register addresses (low byte of the XDATA address).
const (
	RegPKTLEN   byte = 0x02
	RegPKTCTRL1 byte = 0x03
	RegPKTCTRL0 byte = 0x04
	RegCHANNR   byte = 0x06
	RegFREQ2    byte = 0x09
	RegFREQ1    byte = 0x0A
	RegFREQ0    byte = 0x0B
	RegMDMCFG4  byte = 0x0C
	RegMDMCFG3  byte = 0x0D
	RegMDMCFG2  byte = 0x0E
	RegMDMCFG1  byte = 0x0F
	RegMDMCFG0  byte = 0x10
	RegFREND0   byte = 0x1B
	RegPATABLE1 byte = 0x2D
	RegPATABLE0 byte = 0x2E
)

// Register field values.
const (
	// mdmcfg2ASK selects ASK/OOK with no preamble or sync word.
	mdmcfg2ASK byte = 0x30

	// mdmcfg4Bandwidth is the receive filter bandwidth nibble (203 kHz).
	mdmcfg4Bandwidth byte = 0x80

	// mdmcfg1Preamble keeps four preamble bytes alongside CHANSPC_E.
	mdmcfg1Preamble byte = 0x20

	// frend0OOK routes PA_TABLE[0] (off) and PA_TABLE[1] (on) for OOK.
	frend0OOK byte = 0x11

	// pktctrl0Fixed is fixed packet length, no CRC, no whitening.
	pktctrl0Fixed byte = 0x00

	maxPacketLength = 255
)

// RegisterWrite is one register update.
type RegisterWrite struct {
	Addr  byte
	Value byte
}

// FrequencyRegisters returns FREQ2..FREQ0 for a carrier of hz.
func FrequencyRegisters(hz, crystal uint32) []RegisterWrite {
	word := uint32(math.Round(float64(hz) * 65536 / float64(crystal)))
	return []RegisterWrite{
		{RegFREQ2, byte(word >> 16)},
		{RegFREQ1, byte(word >> 8)},
		{RegFREQ0, byte(word)},
	}
}

// DataRate returns the DRATE exponent and mantissa for baud.
func DataRate(baud, crystal uint32) (exp, mantissa byte, err error) {
	if baud == 0 {
		return 0, 0, fmt.Errorf("data rate must be positive")
	}
	e := int(math.Floor(math.Log2(float64(baud) * (1 << 20) / float64(crystal))))
	m := int(math.Round(float64(baud)*(1<<28)/(float64(crystal)*math.Pow(2, float64(e))))) - 256
	if m == 256 {
		m = 0
		e++
	}
	if e < 0 || e > 15 || m < 0 || m > 255 {
		return 0, 0, fmt.Errorf("data rate %d out of range", baud)
	}
	return byte(e), byte(m), nil
}

// ChannelSpacing returns the CHANSPC exponent and mantissa for hz.
func ChannelSpacing(hz, crystal uint32) (exp, mantissa byte, err error) {
	for e := 0; e < 4; e++ {
		m := int(math.Round(float64(hz)*(1<<18)/(float64(crystal)*math.Pow(2, float64(e))))) - 256
		if m >= 0 && m <= 255 {
			return byte(e), byte(m), nil
		}
	}
	return 0, 0, fmt.Errorf("channel spacing %d out of range", hz)
}
