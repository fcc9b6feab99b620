// Package imgcard emulates an SD card in SPI mode on top of a raw card
// image. It implements the same byte exchange transport the real card sits
// behind, so the unmodified protocol driver can run against an image file on
// the host.
package imgcard

import (
	"encoding/binary"

	"github.com/spf13/afero"
)

const sectorSize = 512

const (
	fill      = 0xFF
	dataToken = 0xFE

	r1Idle           = 0x01
	r1Ready          = 0x00
	r1IllegalCommand = 0x04
)

// Card is a simulated SPI mode SD card. It consumes command frames byte by
// byte and queues the response bytes a real card would send for them.
// Reads beyond the end of the image return zero bytes.
type Card struct {
	// ReadyAfter is the number of ACMD41 attempts the card stays idle for.
	// 0 models a card that never becomes ready.
	ReadyAfter int

	image []byte

	selected bool
	frame    []byte
	pending  []byte

	appCmd      bool
	opCondPolls int
	ready       bool
}

// Open loads a card image from the given filesystem.
func Open(fsys afero.Fs, path string) (*Card, error) {
	image, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	return New(image), nil
}

// New builds a simulated card over a raw image.
// By default the card reports ready on the second ACMD41 attempt, which also
// exercises the retry loop of the driver.
func New(image []byte) *Card {
	return &Card{
		ReadyAfter: 2,
		image:      image,
	}
}

// SetSelect drives the simulated chip select line. Releasing the line drops
// any partial frame and all pending response bytes, like a real card does.
func (c *Card) SetSelect(selected bool) {
	c.selected = selected
	if !selected {
		c.frame = c.frame[:0]
		c.pending = c.pending[:0]
	}
}

// ExchangeByte models one full duplex byte exchange on the bus.
func (c *Card) ExchangeByte(out byte) byte {
	if !c.selected {
		return fill
	}

	// Queued response bytes take priority over new command bytes.
	if len(c.pending) > 0 {
		in := c.pending[0]
		c.pending = c.pending[1:]
		return in
	}

	// A frame starts with a byte carrying the 01 transmission bits.
	if len(c.frame) == 0 && out&0xC0 != 0x40 {
		return fill
	}

	c.frame = append(c.frame, out)
	if len(c.frame) < 6 {
		return fill
	}

	cmd := c.frame[0] & 0x3F
	arg := binary.BigEndian.Uint32(c.frame[1:5])
	c.frame = c.frame[:0]
	c.respond(cmd, arg)

	return fill
}

// respond queues the response bytes for one received command frame. A real
// card needs a few clocks before it answers, modeled by one leading fill
// byte which also exercises the response polling of the driver.
func (c *Card) respond(cmd byte, arg uint32) {
	appCmd := c.appCmd
	c.appCmd = false

	c.queue(fill)

	switch {
	case cmd == 0:
		c.queue(r1Idle)
	case cmd == 8:
		// R7: the status byte plus the echoed voltage range and check
		// pattern from the argument.
		c.queue(r1Idle, 0x00, 0x00, byte(arg>>8)&0x0F, byte(arg))
	case cmd == 55:
		c.appCmd = true
		c.queue(r1Idle)
	case cmd == 41 && appCmd:
		c.opCondPolls++
		if c.ReadyAfter > 0 && c.opCondPolls >= c.ReadyAfter {
			c.ready = true
			c.queue(r1Ready)
		} else {
			c.queue(r1Idle)
		}
	case cmd == 58:
		// R3: the status byte plus the OCR with the power up and high
		// capacity bits set.
		c.queue(r1Ready, 0xC0, 0xFF, 0x80, 0x00)
	case cmd == 17:
		if !c.ready {
			c.queue(r1IllegalCommand)
			return
		}
		c.queue(r1Ready)
		c.queueBlock(arg)
	default:
		c.queue(r1IllegalCommand)
	}
}

func (c *Card) queue(bytes ...byte) {
	c.pending = append(c.pending, bytes...)
}

// queueBlock queues the data packet of a single block read: a short gap, the
// data token, one sector of payload and a dummy CRC16.
func (c *Card) queueBlock(sector uint32) {
	c.queue(fill, dataToken)

	start := int64(sector) * sectorSize
	for i := int64(0); i < sectorSize; i++ {
		if off := start + i; off < int64(len(c.image)) {
			c.queue(c.image[off])
		} else {
			c.queue(0x00)
		}
	}

	c.queue(0x00, 0x00)
}
