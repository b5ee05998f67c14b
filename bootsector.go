package ntfsmft

import (
	"bytes"
	"encoding/binary"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// defaultEncoding is the byte order all on-disk NTFS structures use.
var defaultEncoding = binary.LittleEndian

const (
	bootSectorSize = 512

	// minFileRecordSize is the smallest record-size NTFS is known to use.
	minFileRecordSize = 1024
)

var (
	requiredOemId           = []byte("NTFS    ")
	legacyBootSignatureByte = [2]byte{0x55, 0xAA}
)

// BootSector is the decoded NTFS volume boot record (VBR). Field layout
// mirrors the on-disk structure byte-for-byte so restruct can unpack it
// directly; reserved regions are kept as named filler so the offsets of the
// fields callers rely on (OEMID, BytesPerSector, MFTLogicalClusterNumber,
// ...) are easy to audit against the byte offsets in the NTFS documentation.
type BootSector struct {
	JumpInstruction [3]byte
	OEMID           [8]byte

	BytesPerSector    uint16
	SectorsPerCluster uint8

	ReservedSectors uint16
	Unused1         [3]byte
	Unused2         uint16
	MediaDescriptor uint8
	Unused3         uint16
	SectorsPerTrack uint16
	NumberOfHeads   uint16
	HiddenSectors   uint32
	Unused4         uint32
	Unused5         uint32

	TotalSectors uint64

	MFTLogicalClusterNumber       uint64
	MFTMirrorLogicalClusterNumber uint64

	ClustersPerFileRecordSegment int8
	Unused6                      [3]byte
	ClustersPerIndexBuffer       int8
	Unused7                      [3]byte

	VolumeSerialNumber uint64
	Checksum           uint32

	BootstrapCode [426]byte

	EndOfSectorMarker uint16
}

// DecodeBootSector unpacks the first 512 bytes of a VBR and validates its
// structural invariants. sectorSize is the
// candidate physical sector size the caller is probing with; it is checked
// against BytesPerSector and against the trailing boot-signature position.
func DecodeBootSector(raw []byte, sectorSize uint32) (bs BootSector, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("boot-sector decode panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if len(raw) < bootSectorSize {
		log.Panicf("boot-sector buffer too small: (%d) < (%d)", len(raw), bootSectorSize)
	}

	err = restruct.Unpack(raw[:bootSectorSize], defaultEncoding, &bs)
	log.PanicIf(err)

	if bytes.Equal(bs.OEMID[:], requiredOemId) != true {
		log.Panicf("OEM ID not NTFS: [% x]", bs.OEMID[:])
	}

	if err := bs.checkBootSignature(raw, sectorSize); err != nil {
		log.PanicIf(err)
	}

	if err := bs.checkInvariants(); err != nil {
		log.PanicIf(err)
	}

	if sectorSize != 0 && uint32(bs.BytesPerSector) != sectorSize {
		log.Panicf("BytesPerSector does not match probed sector-size: (%d) != (%d)", bs.BytesPerSector, sectorSize)
	}

	return bs, nil
}

// checkBootSignature validates the trailing 0x55 0xAA marker. When the
// caller's sector is larger than 512 bytes, the legacy marker at byte 510 is
// also accepted.
func (bs BootSector) checkBootSignature(raw []byte, sectorSize uint32) error {
	size := uint32(len(raw))
	if sectorSize != 0 {
		size = sectorSize
	}

	if size < 2 || size > uint32(len(raw)) {
		return log.Errorf("boot-signature check out of range for buffer of length (%d)", len(raw))
	}

	if raw[size-2] == legacyBootSignatureByte[0] && raw[size-1] == legacyBootSignatureByte[1] {
		return nil
	}

	if size > 512 && raw[510] == legacyBootSignatureByte[0] && raw[511] == legacyBootSignatureByte[1] {
		return nil
	}

	return log.Errorf("boot-signature 0x55AA not found at offset (%d) (or legacy 510)", size-2)
}

// checkInvariants enforces the bytes-per-sector/sectors-per-cluster/mft-lcn
// constraints.
func (bs BootSector) checkInvariants() error {
	switch bs.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return log.Errorf("invalid BytesPerSector: (%d)", bs.BytesPerSector)
	}

	if bs.SectorsPerCluster == 0 || !isPowerOfTwo(uint64(bs.SectorsPerCluster)) {
		return log.Errorf("invalid SectorsPerCluster: (%d)", bs.SectorsPerCluster)
	}

	if bs.MFTLogicalClusterNumber == 0 {
		return log.Errorf("MFTLogicalClusterNumber is zero")
	}

	recordSize, err := bs.FileRecordSize()
	if err != nil {
		return err
	}

	if recordSize < minFileRecordSize || !isPowerOfTwo(uint64(recordSize)) {
		return log.Errorf("invalid file-record size: (%d)", recordSize)
	}

	return nil
}

// BytesPerCluster derives bytes-per-cluster from the two on-disk fields.
func (bs BootSector) BytesPerCluster() uint64 {
	return uint64(bs.BytesPerSector) * uint64(bs.SectorsPerCluster)
}

// FileRecordSize derives the MFT record size in bytes. A positive
// ClustersPerFileRecordSegment means "this many clusters"; a negative -n
// means "1<<n bytes".
func (bs BootSector) FileRecordSize() (uint32, error) {
	v := bs.ClustersPerFileRecordSegment
	if v == 0 {
		return 0, log.Errorf("ClustersPerFileRecordSegment is zero")
	}

	if v > 0 {
		size := bs.BytesPerCluster() * uint64(v)
		if size > 0xFFFFFFFF {
			return 0, log.Errorf("file-record size overflows 32 bits: (%d)", size)
		}

		return uint32(size), nil
	}

	shift := uint32(-v)
	if shift > 31 {
		return 0, log.Errorf("ClustersPerFileRecordSegment shift too large: (%d)", shift)
	}

	return uint32(1) << shift, nil
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
