package sdfat

import (
	"fmt"
	"io"

	"github.com/aligator/sdfat/checkpoint"
)

// blockReader provides the two card operations the session needs.
// It mainly exists to be able to mock the card in tests.
// Generated mock using mockgen:
//  mockgen -source=session.go -destination=session_mock.go -package sdfat
type blockReader interface {
	Initialize() error
	ReadBlock(address uint32, buf []byte) error
}

// Session reads the root directory of the first partition and reports every
// regular entry to the output sink. It keeps no state between runs, every Run
// starts with a fresh card handshake.
type Session struct {
	card blockReader
	out  io.Writer
}

// NewSession creates a session on top of an initialized-or-not card.
// out is a best effort diagnostic stream, write errors are not reported.
func NewSession(card blockReader, out io.Writer) *Session {
	return &Session{
		card: card,
		out:  out,
	}
}

// Run executes the whole pipeline: card init, partition table, boot sector,
// root directory. It stops at the first failing phase, names it on the sink
// and does not touch the card afterwards. Only the first sector of the root
// directory is read, directories spanning more sectors are out of scope.
func (s *Session) Run() error {
	// A single sector buffer is reused for all reads. Every decode step has
	// to be finished before the next ReadBlock overwrites it.
	buf := make([]byte, SectorSize)

	s.printf("Initializing SD Card...\r\n")
	if err := s.card.Initialize(); err != nil {
		s.printf("SD Card init failed!\r\n")
		return checkpoint.From(err)
	}
	s.printf("SD Card OK.\r\n")

	if err := s.card.ReadBlock(0, buf); err != nil {
		s.printf("MBR read error\r\n")
		return checkpoint.From(err)
	}
	partitionStart, err := PartitionStart(buf)
	if err != nil {
		s.printf("MBR read error\r\n")
		return checkpoint.From(err)
	}

	if err := s.card.ReadBlock(partitionStart, buf); err != nil {
		s.printf("VBR read error\r\n")
		return checkpoint.From(err)
	}
	volume, err := ParseVolumeBoot(buf)
	if err != nil {
		s.printf("VBR parse error\r\n")
		return checkpoint.From(err)
	}
	s.printf("FAT32 detected. Root Cluster: %d\r\n", volume.RootCluster)

	rootSector := volume.ClusterSector(volume.RootCluster)
	if err := s.card.ReadBlock(rootSector, buf); err != nil {
		s.printf("Root dir read error\r\n")
		return checkpoint.From(err)
	}

	s.printf("Root Directory:\r\n")
	dir, err := DecodeDirectorySector(buf)
	if err != nil {
		s.printf("Root dir decode error\r\n")
		return checkpoint.From(err)
	}
	for {
		entry, ok := dir.Next()
		if !ok {
			break
		}
		s.printf("Name: %s | Attr: %02X | Size: %d\r\n", entry.DisplayName(), byte(entry.Attribute), entry.Size)
	}

	return nil
}

// printf writes one diagnostic line. The sink has no error channel, a failed
// write is dropped.
func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}
