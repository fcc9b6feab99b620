package sdfat

import (
	"errors"
	"fmt"

	"github.com/aligator/sdfat/checkpoint"
)

// These errors may occur while talking to the card.
var (
	ErrCardInit     = errors.New("could not initialize the card")
	ErrCardRead     = errors.New("could not read a block from the card")
	ErrCardNotReady = errors.New("the card is not initialized")

	errNoResponse  = errors.New("no response within the poll limit")
	errNoDataToken = errors.New("no data token within the poll limit")
)

// Commands used by the driver. Only this fixed set is ever sent, so the CRC
// byte of each frame is a protocol constant instead of being computed.
const (
	cmdGoIdleState   = 0  // CMD0
	cmdSendIfCond    = 8  // CMD8
	cmdReadSingle    = 17 // CMD17
	cmdAppCmd        = 55 // CMD55
	cmdAppSendOpCond = 41 // ACMD41
	cmdReadOCR       = 58 // CMD58
)

const (
	crcGoIdleState   = 0x95
	crcSendIfCond    = 0x87
	crcAppCmd        = 0x65
	crcAppSendOpCond = 0x77
	crcReadOCR       = 0xFD
	crcReadSingle    = 0xFF // The card ignores the CRC after CMD8.
)

const (
	fillByte    = 0xFF
	dataToken   = 0xFE
	statusIdle  = 0x01
	statusReady = 0x00

	// CMD8 argument: 2.7-3.6V voltage range plus the 0xAA check pattern.
	ifCondArg          = 0x1AA
	voltageRange27to36 = 0x01
	checkPattern       = 0xAA

	// ACMD41 argument announcing high capacity support.
	opCondHighCapacity = 0x40000000
)

const (
	// The card may keep the bus high for up to 8 filler bytes before the
	// response byte of a command shows up.
	responsePollLimit = 8

	// Ceilings for the longer waits. The target has no timer, so these are
	// iteration counts, not wall-clock timeouts.
	initPollLimit  = 0xFFFF
	tokenPollLimit = 0xFFFF
)

// Card drives a single SD card in SPI mode on top of a Transport.
// The only state kept between calls is whether the init handshake completed,
// every read starts from a clean exchange.
type Card struct {
	transport Transport
	ready     bool
}

func NewCard(transport Transport) *Card {
	return &Card{transport: transport}
}

// Initialize runs the SPI mode handshake: idle clocks, CMD0, CMD8, the
// CMD55+ACMD41 ready loop and CMD58. Each step requires its documented
// response, any mismatch or an exhausted poll ceiling fails the whole
// handshake. After a successful return the card accepts block reads.
func (c *Card) Initialize() error {
	c.ready = false

	// At least 74 idle clocks with the card deselected are required for the
	// card to enter command mode. 10 filler bytes are 80 clocks.
	c.transport.SetSelect(false)
	c.clockFill(10)

	if err := c.expect(cmdGoIdleState, 0, crcGoIdleState, statusIdle); err != nil {
		return checkpoint.Wrap(err, ErrCardInit)
	}

	if err := c.checkInterfaceCondition(); err != nil {
		return checkpoint.Wrap(err, ErrCardInit)
	}

	if err := c.waitReady(); err != nil {
		return checkpoint.Wrap(err, ErrCardInit)
	}

	if err := c.readOCR(); err != nil {
		return checkpoint.Wrap(err, ErrCardInit)
	}

	c.ready = true
	return nil
}

// ReadBlock reads the 512 byte block at the given zero-based address into
// buf. buf must hold exactly one sector. It stays owned by the caller and is
// only written between the data token and the return of this call.
func (c *Card) ReadBlock(address uint32, buf []byte) error {
	if !c.ready {
		return checkpoint.Wrap(ErrCardNotReady, ErrCardRead)
	}
	if len(buf) != SectorSize {
		return checkpoint.Wrap(fmt.Errorf("buffer holds %d bytes instead of %d", len(buf), SectorSize), ErrCardRead)
	}

	response, err := c.command(cmdReadSingle, address, crcReadSingle)
	if err != nil {
		return checkpoint.Wrap(err, ErrCardRead)
	}
	if response != statusReady {
		c.release()
		return checkpoint.Wrap(fmt.Errorf("CMD17 responded 0x%02X, expected 0x%02X", response, statusReady), ErrCardRead)
	}

	if _, ok := c.poll(tokenPollLimit, func(b byte) bool { return b == dataToken }); !ok {
		c.release()
		return checkpoint.Wrap(errNoDataToken, ErrCardRead)
	}

	for i := range buf {
		buf[i] = c.exchange(fillByte)
	}
	// The card appends a CRC16 which this driver reads but does not verify.
	c.clockFill(2)
	c.release()

	return nil
}

func (c *Card) exchange(out byte) byte {
	return c.transport.ExchangeByte(out)
}

// clockFill clocks n filler bytes, discarding whatever comes back.
func (c *Card) clockFill(n int) {
	for i := 0; i < n; i++ {
		c.exchange(fillByte)
	}
}

// poll clocks filler bytes until accept is true for a received byte,
// bounded by limit attempts. ok is false once the limit is exhausted.
func (c *Card) poll(limit int, accept func(b byte) bool) (b byte, ok bool) {
	for i := 0; i < limit; i++ {
		if b := c.exchange(fillByte); accept(b) {
			return b, true
		}
	}
	return 0, false
}

// command selects the card and sends one 6 byte command frame: the command
// byte with the transmission bit set, a big-endian argument and the fixed CRC
// of this command. It returns the response byte. On success the card stays
// selected so the caller can clock additional response or data bytes, and has
// to call release afterwards.
func (c *Card) command(cmd byte, arg uint32, crc byte) (byte, error) {
	c.transport.SetSelect(true)
	c.exchange(0x40 | cmd)
	c.exchange(byte(arg >> 24))
	c.exchange(byte(arg >> 16))
	c.exchange(byte(arg >> 8))
	c.exchange(byte(arg))
	c.exchange(crc)

	response, ok := c.poll(responsePollLimit, func(b byte) bool { return b&0x80 == 0 })
	if !ok {
		c.release()
		return 0, checkpoint.Wrap(errNoResponse, fmt.Errorf("CMD%d", cmd))
	}
	return response, nil
}

// release deselects the card and clocks one more filler byte so the card
// lets go of the data line.
func (c *Card) release() {
	c.transport.SetSelect(false)
	c.exchange(fillByte)
}

// expect sends a command that carries no extra response payload and checks
// its response byte.
func (c *Card) expect(cmd byte, arg uint32, crc byte, want byte) error {
	response, err := c.command(cmd, arg, crc)
	if err != nil {
		return err
	}
	c.release()

	if response != want {
		return checkpoint.From(fmt.Errorf("CMD%d responded 0x%02X, expected 0x%02X", cmd, response, want))
	}
	return nil
}

// checkInterfaceCondition sends CMD8 with the supported voltage range and the
// check pattern. A card of the supported generation answers in idle state and
// echoes both values back in the four trailing response bytes.
func (c *Card) checkInterfaceCondition() error {
	response, err := c.command(cmdSendIfCond, ifCondArg, crcSendIfCond)
	if err != nil {
		return err
	}

	var echo [4]byte
	for i := range echo {
		echo[i] = c.exchange(fillByte)
	}
	c.release()

	if response != statusIdle {
		return checkpoint.From(fmt.Errorf("CMD8 responded 0x%02X, expected 0x%02X", response, statusIdle))
	}
	if echo[2]&0x0F != voltageRange27to36 || echo[3] != checkPattern {
		return checkpoint.From(fmt.Errorf("CMD8 echoed % X instead of the sent voltage range and check pattern", echo))
	}
	return nil
}

// waitReady repeats ACMD41, each attempt prefixed by its mandatory CMD55
// escape, until the card leaves the idle state or the ceiling is reached.
func (c *Card) waitReady() error {
	for i := 0; i < initPollLimit; i++ {
		if _, err := c.command(cmdAppCmd, 0, crcAppCmd); err != nil {
			return err
		}
		c.release()

		response, err := c.command(cmdAppSendOpCond, opCondHighCapacity, crcAppSendOpCond)
		if err != nil {
			return err
		}
		c.release()

		if response == statusReady {
			return nil
		}
	}
	return checkpoint.From(errors.New("the card never reported ready"))
}

// readOCR fetches the operating conditions register. Only the leading
// response byte is checked, the four register bytes are clocked and ignored.
func (c *Card) readOCR() error {
	response, err := c.command(cmdReadOCR, 0, crcReadOCR)
	if err != nil {
		return err
	}
	c.clockFill(4)
	c.release()

	if response != statusReady {
		return checkpoint.From(fmt.Errorf("CMD58 responded 0x%02X, expected 0x%02X", response, statusReady))
	}
	return nil
}
