// Package sdfat reads the root directory of a FAT32 formatted SD card over
// a SPI transport and reports each entry to a diagnostic output sink.
package sdfat

// Transport is the serial bus primitive the card driver runs on.
// The bus peripheral itself (clock setup, pin directions) is expected to be
// configured before the first call.
type Transport interface {
	// ExchangeByte clocks one byte out on the bus and returns the byte
	// that was read back during the same exchange.
	ExchangeByte(out byte) byte

	// SetSelect drives the chip select line. true asserts the line and
	// addresses the card, false releases it.
	SetSelect(selected bool)
}
