package sdfat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/aligator/sdfat/checkpoint"
)

// ErrDirDecode may occur when a buffer of the wrong size is handed to the
// directory decoder.
var ErrDirDecode = errors.New("could not decode the directory sector")

// Attr is the attribute bitfield of a directory record. The decoder only
// interprets AttrVolumeID to filter label records, the remaining bits are
// passed through untouched.
type Attr byte

const (
	AttrReadOnly  Attr = 0x01
	AttrHidden    Attr = 0x02
	AttrSystem    Attr = 0x04
	AttrVolumeID  Attr = 0x08
	AttrDirectory Attr = 0x10
	AttrArchive   Attr = 0x20
)

// Markers in the first name byte of a directory record.
const (
	markerFree    = 0x00
	markerDeleted = 0xE5
)

// recordKind classifies one directory record slot.
type recordKind int

const (
	kindRegular recordKind = iota
	kindFree
	kindDeleted
	kindVolumeLabel
)

// DirEntry is one decoded directory record.
type DirEntry struct {
	// RawName is the space padded 8.3 name exactly as stored on disk.
	RawName [recordNameLen]byte
	// Attribute is the raw attribute bitfield of the record.
	Attribute Attr
	// Size is the file size in bytes.
	Size uint32
}

// DisplayName renders the 8.3 name: up to 8 base name bytes, and if the
// extension field is used, a dot followed by up to 3 extension bytes.
// The space padding is dropped.
func (e DirEntry) DisplayName() string {
	var name strings.Builder

	for _, b := range e.RawName[:8] {
		if b == ' ' {
			break
		}
		name.WriteByte(b)
	}

	if e.RawName[8] != ' ' {
		name.WriteByte('.')
		for _, b := range e.RawName[8:] {
			if b == ' ' {
				break
			}
			name.WriteByte(b)
		}
	}

	return name.String()
}

// DirectorySector decodes the directory records of one sector, in order.
// It reads directly from the caller's sector buffer, so it has to be fully
// consumed before the buffer is reused for the next block read.
type DirectorySector struct {
	buf  []byte
	next int
}

// recordsPerSector is fixed by the format: 512 / 32.
const recordsPerSector = SectorSize / recordSize

// DecodeDirectorySector wraps a directory sector for record iteration.
func DecodeDirectorySector(buf []byte) (*DirectorySector, error) {
	if len(buf) != SectorSize {
		return nil, checkpoint.Wrap(fmt.Errorf("sector holds %d bytes instead of %d", len(buf), SectorSize), ErrDirDecode)
	}

	return &DirectorySector{buf: buf}, nil
}

// Next returns the next regular entry of the sector. Deleted and volume
// label records are skipped, a free record marks the end of the used part
// of the block and stops the iteration. The second return value is false
// once all records are consumed.
func (d *DirectorySector) Next() (DirEntry, bool) {
	for d.next < recordsPerSector {
		slot := d.buf[d.next*recordSize : (d.next+1)*recordSize]
		d.next++

		kind := classifyRecord(slot)
		if kind == kindFree {
			// A free marker ends the block, every slot after it is free too.
			d.next = recordsPerSector
			break
		}
		if kind != kindRegular {
			continue
		}

		entry := DirEntry{
			Attribute: Attr(slot[recordAttrOffset]),
			Size:      binary.LittleEndian.Uint32(slot[recordSizeOffset:]),
		}
		copy(entry.RawName[:], slot[recordNameOffset:recordNameOffset+recordNameLen])

		return entry, true
	}

	return DirEntry{}, false
}

// classifyRecord decides what kind of record a 32 byte slot holds.
func classifyRecord(slot []byte) recordKind {
	switch {
	case slot[recordNameOffset] == markerFree:
		return kindFree
	case slot[recordNameOffset] == markerDeleted:
		return kindDeleted
	case Attr(slot[recordAttrOffset])&AttrVolumeID != 0:
		return kindVolumeLabel
	default:
		return kindRegular
	}
}
