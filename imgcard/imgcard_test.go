package imgcard

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// sendCommand drives one command frame into the simulated card the way the
// real driver does and returns the first response byte.
func sendCommand(t *testing.T, c *Card, cmd byte, arg uint32, crc byte) byte {
	t.Helper()

	c.SetSelect(true)
	c.ExchangeByte(0x40 | cmd)
	c.ExchangeByte(byte(arg >> 24))
	c.ExchangeByte(byte(arg >> 16))
	c.ExchangeByte(byte(arg >> 8))
	c.ExchangeByte(byte(arg))
	c.ExchangeByte(crc)

	for i := 0; i < 8; i++ {
		if b := c.ExchangeByte(fill); b&0x80 == 0 {
			return b
		}
	}

	t.Fatal("the card never answered the command")
	return fill
}

func release(c *Card) {
	c.SetSelect(false)
	c.ExchangeByte(fill)
}

// makeReady walks the simulated card through the init handshake.
func makeReady(t *testing.T, c *Card) {
	t.Helper()

	require.Equal(t, byte(r1Idle), sendCommand(t, c, 0, 0, 0x95))
	release(c)

	for i := 0; i < 8; i++ {
		require.Equal(t, byte(r1Idle), sendCommand(t, c, 55, 0, 0x65))
		release(c)
		response := sendCommand(t, c, 41, 0x40000000, 0x77)
		release(c)
		if response == r1Ready {
			return
		}
	}

	t.Fatal("the simulated card never became ready")
}

func TestCard_InitHandshake(t *testing.T) {
	c := New(nil)

	require.Equal(t, byte(r1Idle), sendCommand(t, c, 0, 0, 0x95))
	release(c)

	require.Equal(t, byte(r1Idle), sendCommand(t, c, 8, 0x1AA, 0x87))
	var echo [4]byte
	for i := range echo {
		echo[i] = c.ExchangeByte(fill)
	}
	release(c)
	require.Equal(t, [4]byte{0x00, 0x00, 0x01, 0xAA}, echo)

	require.Equal(t, byte(r1Idle), sendCommand(t, c, 55, 0, 0x65))
	release(c)
	require.Equal(t, byte(r1Idle), sendCommand(t, c, 41, 0x40000000, 0x77),
		"the card must stay idle on the first ACMD41 attempt")
	release(c)

	require.Equal(t, byte(r1Idle), sendCommand(t, c, 55, 0, 0x65))
	release(c)
	require.Equal(t, byte(r1Ready), sendCommand(t, c, 41, 0x40000000, 0x77))
	release(c)

	require.Equal(t, byte(r1Ready), sendCommand(t, c, 58, 0, 0xFD))
	var ocr [4]byte
	for i := range ocr {
		ocr[i] = c.ExchangeByte(fill)
	}
	release(c)
	require.Equal(t, byte(0xC0), ocr[0], "power up and capacity bits must be set")
}

func TestCard_ReadBeforeReady(t *testing.T) {
	c := New(nil)

	require.Equal(t, byte(r1IllegalCommand), sendCommand(t, c, 17, 0, 0xFF))
	release(c)
}

func TestCard_ReadBlock(t *testing.T) {
	image := make([]byte, 4*sectorSize)
	for i := range image {
		image[i] = byte(i % 7)
	}

	c := New(image)
	makeReady(t, c)

	require.Equal(t, byte(r1Ready), sendCommand(t, c, 17, 3, 0xFF))

	var token byte
	for i := 0; i < 16; i++ {
		if token = c.ExchangeByte(fill); token == dataToken {
			break
		}
	}
	require.Equal(t, byte(dataToken), token)

	payload := make([]byte, sectorSize)
	for i := range payload {
		payload[i] = c.ExchangeByte(fill)
	}
	release(c)

	require.Equal(t, image[3*sectorSize:4*sectorSize], payload)
}

func TestCard_ReadPastImageEnd(t *testing.T) {
	c := New(make([]byte, sectorSize))
	makeReady(t, c)

	require.Equal(t, byte(r1Ready), sendCommand(t, c, 17, 100, 0xFF))

	var token byte
	for i := 0; i < 16; i++ {
		if token = c.ExchangeByte(fill); token == dataToken {
			break
		}
	}
	require.Equal(t, byte(dataToken), token)

	for i := 0; i < sectorSize; i++ {
		require.Equal(t, byte(0x00), c.ExchangeByte(fill))
	}
	release(c)
}

func TestCard_DeselectDropsState(t *testing.T) {
	c := New(nil)

	// Abort a frame in the middle.
	c.SetSelect(true)
	c.ExchangeByte(0x40)
	c.ExchangeByte(0x00)
	c.SetSelect(false)

	// Deselected exchanges keep the line high.
	require.Equal(t, byte(fill), c.ExchangeByte(fill))

	// A fresh frame still works afterwards.
	require.Equal(t, byte(r1Idle), sendCommand(t, c, 0, 0, 0x95))
}

func TestOpen(t *testing.T) {
	fsys := afero.NewMemMapFs()
	image := make([]byte, 2*sectorSize)
	image[0] = 0xAB
	require.NoError(t, afero.WriteFile(fsys, "card.img", image, 0644))

	c, err := Open(fsys, "card.img")
	require.NoError(t, err)
	require.Equal(t, image, c.image)

	_, err = Open(fsys, "missing.img")
	require.Error(t, err)
}
