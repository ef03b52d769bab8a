package subgrfspy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/nerrad567/rfbridge/internal/radio"
)

// Firmware commands.
const (
	cmdGetState       byte = 1
	cmdGetPacket      byte = 3
	cmdSendPacket     byte = 4
	cmdUpdateRegister byte = 6
	cmdReset          byte = 7
)

// Firmware error codes.
const (
	errRXTimeout      byte = 0xaa
	errCmdInterrupted byte = 0xbb
	errZeroData       byte = 0xcc
)

// Timeouts.
const (
	defaultCommandTimeout = time.Second
	defaultReceiveTimeout = time.Second
	defaultTransmitWait   = 10 * time.Second
	serialPollInterval    = 100 // milliseconds, go-serial InterCharacterTimeout
)

var (
	// ErrFirmware is returned for firmware error responses other than timeouts.
	ErrFirmware = errors.New("subgrfspy: firmware error")

	// ErrNotReady is returned when the firmware does not report OK.
	ErrNotReady = errors.New("subgrfspy: radio not ready")
)

// Config configures a serial connection.
type Config struct {
	// Port is the serial device (e.g. /dev/ttyACM0).
	Port string

	// BaudRate of the serial link. Default: 115200.
	BaudRate uint

	// Crystal is the radio reference oscillator. Default: DefaultCrystal.
	Crystal uint32

	// CommandTimeout bounds register writes and state queries.
	CommandTimeout time.Duration

	// ReceiveTimeout bounds one packet capture.
	ReceiveTimeout time.Duration
}

// Driver is a radio.Transceiver for subg_rfspy firmware.
type Driver struct {
	port io.ReadWriteCloser
	cfg  Config

	mu        sync.Mutex
	channel   uint8
	packetLen int
}

var _ radio.Transceiver = (*Driver)(nil)

// Open opens the serial port and checks that the firmware answers.
func Open(cfg Config) (*Driver, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: serialPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Port, err)
	}

	d := New(port, cfg)
	if err := d.Ping(); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return d, nil
}

// New wraps an already open port.
func New(port io.ReadWriteCloser, cfg Config) *Driver {
	if cfg.Crystal == 0 {
		cfg.Crystal = DefaultCrystal
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	return &Driver{port: port, cfg: cfg}
}

// Ping asks the firmware for its state and expects "OK".
func (d *Driver) Ping() error {
	resp, err := d.command(cmdGetState, nil, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	if string(resp) != "OK" {
		return fmt.Errorf("%w: state %q", ErrNotReady, resp)
	}
	return nil
}

// SetModulation selects OOK with no sync word.
func (d *Driver) SetModulation(m radio.Modulation) error {
	if m != radio.ModulationOOK {
		return fmt.Errorf("unsupported modulation %s", m)
	}
	return d.writeRegisters(
		RegisterWrite{RegMDMCFG2, mdmcfg2ASK},
		RegisterWrite{RegFREND0, frend0OOK},
	)
}

// SetFrequency programs the carrier frequency.
func (d *Driver) SetFrequency(hz uint32) error {
	return d.writeRegisters(FrequencyRegisters(hz, d.cfg.Crystal)...)
}

// SetBaudRate programs the modem data rate.
func (d *Driver) SetBaudRate(baud uint32) error {
	e, m, err := DataRate(baud, d.cfg.Crystal)
	if err != nil {
		return err
	}
	return d.writeRegisters(
		RegisterWrite{RegMDMCFG4, mdmcfg4Bandwidth | e},
		RegisterWrite{RegMDMCFG3, m},
	)
}

// SetChannelSpacing programs the channel step.
func (d *Driver) SetChannelSpacing(hz uint32) error {
	e, m, err := ChannelSpacing(hz, d.cfg.Crystal)
	if err != nil {
		return err
	}
	return d.writeRegisters(
		RegisterWrite{RegMDMCFG1, mdmcfg1Preamble | e},
		RegisterWrite{RegMDMCFG0, m},
	)
}

// SetChannel programs the channel number.
func (d *Driver) SetChannel(channel uint8) error {
	if err := d.writeRegisters(RegisterWrite{RegCHANNR, channel}); err != nil {
		return err
	}
	d.mu.Lock()
	d.channel = channel
	d.mu.Unlock()
	return nil
}

// SetPower sets the "on" PA level; the "off" level is always zero.
func (d *Driver) SetPower(level uint8) error {
	return d.writeRegisters(
		RegisterWrite{RegPATABLE0, 0},
		RegisterWrite{RegPATABLE1, level},
	)
}

// SetPacketLength fixes the packet length.
func (d *Driver) SetPacketLength(n int) error {
	if n <= 0 || n > maxPacketLength {
		return fmt.Errorf("packet length %d out of range", n)
	}
	if err := d.writeRegisters(
		RegisterWrite{RegPKTCTRL0, pktctrl0Fixed},
		RegisterWrite{RegPKTLEN, byte(n)},
	); err != nil {
		return err
	}
	d.mu.Lock()
	d.packetLen = n
	d.mu.Unlock()
	return nil
}

// SetReceiveMode disables address filtering so any burst is captured.
// The firmware enters RX on each GetPacket.
func (d *Driver) SetReceiveMode() error {
	return d.writeRegisters(RegisterWrite{RegPKTCTRL1, 0x00})
}

// SetIdleMode is implicit: the firmware returns to idle after each
// command completes.
func (d *Driver) SetIdleMode() error { return nil }

// Transmit sends data count times.
func (d *Driver) Transmit(data []byte, count int) error {
	if count < 1 || count > 256 {
		return fmt.Errorf("repeat count %d out of range", count)
	}
	d.mu.Lock()
	channel := d.channel
	d.mu.Unlock()

	// channel, additional repeats, inter-packet delay (ms), payload.
	params := append([]byte{channel, byte(count - 1), 0}, data...)
	_, err := d.command(cmdSendPacket, params, defaultTransmitWait)
	return err
}

// Receive waits for one packet.
func (d *Driver) Receive() (radio.Capture, error) {
	d.mu.Lock()
	channel := d.channel
	d.mu.Unlock()

	params := make([]byte, 5)
	params[0] = channel
	binary.BigEndian.PutUint32(params[1:], uint32(d.cfg.ReceiveTimeout/time.Millisecond))

	resp, err := d.command(cmdGetPacket, params, d.cfg.ReceiveTimeout+d.cfg.CommandTimeout)
	if err != nil {
		return radio.Capture{}, err
	}
	if len(resp) < 2 {
		return radio.Capture{}, fmt.Errorf("%w: short packet", ErrFirmware)
	}
	// RSSI and sequence number precede the data.
	return radio.Capture{Data: resp[2:], Timestamp: time.Now()}, nil
}

// Reset restarts the firmware radio state.
func (d *Driver) Reset() error {
	_, err := d.command(cmdReset, nil, d.cfg.CommandTimeout)
	return err
}

// Close closes the serial port.
func (d *Driver) Close() error {
	return d.port.Close()
}

func (d *Driver) writeRegisters(writes ...RegisterWrite) error {
	for _, w := range writes {
		if _, err := d.command(cmdUpdateRegister, []byte{w.Addr, w.Value}, d.cfg.CommandTimeout); err != nil {
			return fmt.Errorf("register 0x%02x: %w", w.Addr, err)
		}
	}
	return nil
}

// command writes one request frame and reads its response.
func (d *Driver) command(cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frame := make([]byte, 0, len(params)+2)
	frame = append(frame, byte(len(params)+1), cmd)
	frame = append(frame, params...)
	if _, err := d.port.Write(frame); err != nil {
		return nil, fmt.Errorf("writing command %d: %w", cmd, err)
	}

	deadline := time.Now().Add(timeout)
	header, err := d.readFull(1, deadline)
	if err != nil {
		return nil, err
	}
	payload, err := d.readFull(int(header[0]), deadline)
	if err != nil {
		return nil, err
	}

	if len(payload) == 1 {
		switch payload[0] {
		case errRXTimeout:
			return nil, fmt.Errorf("%w: no packet received", radio.ErrTransportTimeout)
		case errCmdInterrupted, errZeroData:
			return nil, fmt.Errorf("%w: code 0x%02x", ErrFirmware, payload[0])
		}
	}
	return payload, nil
}

// readFull reads exactly n bytes before deadline. The port returns short
// reads when its inter-character timeout expires.
func (d *Driver) readFull(n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: read %d of %d bytes", radio.ErrTransportTimeout, got, n)
		}
		m, err := d.port.Read(buf[got:])
		got += m
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading response: %w", err)
		}
	}
	return buf, nil
}
