package sdfat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/sdfat/checkpoint"
)

// These errors may occur while decoding the first two sectors of the card.
var (
	ErrPartitionTable = errors.New("could not read the partition table")
	ErrVolumeBoot     = errors.New("could not parse the boot sector")
)

// Volume is the decoded geometry of a FAT32 volume.
// FATStartSector and DataStartSector are derived from the boot sector fields
// once during parsing.
type Volume struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize           uint32
	RootCluster       uint32
	FATStartSector    uint32
	DataStartSector   uint32
}

// PartitionStart extracts the starting sector of the first partition from a
// master boot record sector.
func PartitionStart(buf []byte) (uint32, error) {
	if len(buf) != SectorSize {
		return 0, checkpoint.Wrap(fmt.Errorf("sector holds %d bytes instead of %d", len(buf), SectorSize), ErrPartitionTable)
	}

	return binary.LittleEndian.Uint32(buf[mbrPartitionTableOffset+partitionStartOffset:]), nil
}

// ParseVolumeBoot decodes a boot sector into the volume geometry.
// The decode itself is a plain read of the documented little-endian fields.
// Additionally the 0x55AA signature and the most basic geometry invariants
// are checked, everything else is taken as-is.
func ParseVolumeBoot(buf []byte) (Volume, error) {
	if len(buf) != SectorSize {
		return Volume{}, checkpoint.Wrap(fmt.Errorf("sector holds %d bytes instead of %d", len(buf), SectorSize), ErrVolumeBoot)
	}

	if buf[SectorSize-2] != 0x55 || buf[SectorSize-1] != 0xAA {
		return Volume{}, checkpoint.Wrap(errors.New("missing 0x55AA boot signature"), ErrVolumeBoot)
	}

	var bs bootSector
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &bs); err != nil {
		return Volume{}, checkpoint.Wrap(err, ErrVolumeBoot)
	}

	var fat32 fat32BootSector
	if err := binary.Read(bytes.NewReader(bs.FAT32Data[:]), binary.LittleEndian, &fat32); err != nil {
		return Volume{}, checkpoint.Wrap(err, ErrVolumeBoot)
	}

	// This reader only handles cards with the native sector size.
	if bs.BytesPerSector != SectorSize {
		return Volume{}, checkpoint.Wrap(fmt.Errorf("unsupported sector size %d", bs.BytesPerSector), ErrVolumeBoot)
	}

	// Clusters 0 and 1 are reserved by the format and never map to data.
	if fat32.RootCluster < 2 {
		return Volume{}, checkpoint.Wrap(fmt.Errorf("invalid root cluster %d", fat32.RootCluster), ErrVolumeBoot)
	}

	volume := Volume{
		BytesPerSector:    bs.BytesPerSector,
		SectorsPerCluster: bs.SectorsPerCluster,
		ReservedSectors:   bs.ReservedSectorCount,
		NumFATs:           bs.NumFATs,
		FATSize:           fat32.FATSize,
		RootCluster:       fat32.RootCluster,
		FATStartSector:    uint32(bs.ReservedSectorCount),
	}
	volume.DataStartSector = volume.FATStartSector + uint32(volume.NumFATs)*volume.FATSize

	return volume, nil
}

// ClusterSector maps a cluster number to its first sector.
// Data clusters start at 2.
func (v Volume) ClusterSector(cluster uint32) uint32 {
	return v.DataStartSector + uint32(v.SectorsPerCluster)*(cluster-2)
}
