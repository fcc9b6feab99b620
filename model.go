// File model contains the structs and offsets which match the on-disk
// structures of the partition table and the FAT32 boot sector.

package sdfat

// SectorSize is the fixed block size of the card. The driver, the decoders
// and the session all work on buffers of exactly this size.
const SectorSize = 512

// Offsets within the master boot record: the partition table itself and the
// starting sector field of a partition record.
const (
	mbrPartitionTableOffset = 446
	partitionStartOffset    = 8
)

// bootSector is the part of the boot sector all FAT variants share.
// Decoded with binary.Read, so the field order matches the disk layout.
type bootSector struct {
	JumpBoot            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FAT32Data           [54]byte
}

// fat32BootSector is the FAT32 specific tail of the boot sector, stored
// inside bootSector.FAT32Data.
type fat32BootSector struct {
	FATSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

// Byte layout of a 32 byte directory record. Only the fields this reader
// renders are decoded, the timestamps and cluster fields are left alone.
const (
	recordSize = 32

	recordNameOffset = 0
	recordNameLen    = 11
	recordAttrOffset = 11
	recordSizeOffset = 28
)
