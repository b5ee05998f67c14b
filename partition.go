package ntfsmft

import (
	"bytes"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// Partition describes one candidate NTFS partition located on a disk image,
// as an absolute byte offset/length pair.
type Partition struct {
	StartOffset uint64
	Length      uint64
	BootSector  BootSector
}

var (
	mbrSignature = [2]byte{0x55, 0xAA}
	gptSignature = []byte("EFI PART")

	candidateSectorSizes = []uint32{512, 4096, 2048, 1024}
)

const (
	mbrSize         = 512
	mbrPartitionTableOffset = 446
	mbrPartitionEntrySize   = 16
	maxEbrHops              = 128

	partitionTypeNtfsOrExtended = 0x07
	partitionTypeExtendedChs    = 0x05
	partitionTypeExtendedLba    = 0x0F
)

// LocateNtfsPartitions scans an MBR (including EBR extended-partition
// chains) or a GPT header/entry array for NTFS-typed partitions. The
// candidate sector size (512/1024/2048/4096 autodetection) is the outermost
// loop: every LBA-to-byte-offset computation for a given attempt — MBR entry,
// EBR chain hop, GPT header/entry table — uses that same candidate sector
// size, since a disk's MBR/GPT and its VBRs always agree on physical sector
// size. readAt must support reads anywhere within the disk image.
func LocateNtfsPartitions(readAt func(offset int64, length int) ([]byte, error)) (partitions []Partition, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("partition scan panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	// Superfloppy test first: an NTFS VBR's own boot-signature lives at the
	// same bytes (510/511) an MBR signature would, so a bare volume must be
	// tried before its leading sector is assumed to be a partition table.
	if bs, sectorSize, errDirect := probeVbr(readAt, 0); errDirect == nil {
		return []Partition{directPartition(bs, sectorSize, readAt)}, nil
	}

	mbr, err := readAt(0, mbrSize)
	log.PanicIf(err)

	if len(mbr) < mbrSize || mbr[510] != mbrSignature[0] || mbr[511] != mbrSignature[1] {
		return nil, log.Errorf("no NTFS volume at offset 0 and no MBR signature")
	}

	gptProtective := isGptProtective(mbr)

	var lastErr error

	for _, sectorSize := range candidateSectorSizes {
		var found []Partition
		var errAttempt error

		if gptProtective {
			found, errAttempt = locateGptPartitions(readAt, sectorSize)
		} else {
			found, errAttempt = locateMbrPartitions(readAt, mbr, sectorSize)
		}

		if errAttempt != nil {
			lastErr = errAttempt
			continue
		}

		if len(found) > 0 {
			return found, nil
		}
	}

	if lastErr != nil {
		return nil, log.Wrap(lastErr)
	}

	return nil, log.Errorf("no NTFS partitions found at any candidate sector size")
}

func directPartition(bs BootSector, sectorSize uint32, readAt func(offset int64, length int) ([]byte, error)) Partition {
	length := bs.TotalSectors * uint64(sectorSize)

	return Partition{StartOffset: 0, Length: length, BootSector: bs}
}

// probeVbr tries every candidate sector size at absolute offset and returns
// the first one that decodes into a structurally valid VBR.
func probeVbr(readAt func(offset int64, length int) ([]byte, error), offset int64) (BootSector, uint32, error) {
	var lastErr error

	for _, sectorSize := range candidateSectorSizes {
		raw, err := readAt(offset, int(sectorSize))
		if err != nil {
			lastErr = err
			continue
		}

		bs, err := DecodeBootSector(raw, sectorSize)
		if err != nil {
			lastErr = err
			continue
		}

		return bs, sectorSize, nil
	}

	return BootSector{}, 0, log.Wrap(lastErr)
}

func isGptProtective(mbr []byte) bool {
	for i := 0; i < 4; i++ {
		entry := mbr[mbrPartitionTableOffset+i*mbrPartitionEntrySize:]
		if entry[4] == 0xEE {
			return true
		}
	}

	return false
}

func locateMbrPartitions(readAt func(offset int64, length int) ([]byte, error), mbr []byte, sectorSize uint32) ([]Partition, error) {
	var partitions []Partition

	for i := 0; i < 4; i++ {
		entry := mbr[mbrPartitionTableOffset+i*mbrPartitionEntrySize:]
		partitionType := entry[4]
		lbaStart := uint64(defaultEncoding.Uint32(entry[8:12]))
		lbaCount := uint64(defaultEncoding.Uint32(entry[12:16]))

		if lbaStart == 0 && lbaCount == 0 {
			continue
		}

		switch partitionType {
		case partitionTypeExtendedChs, partitionTypeExtendedLba:
			extended, err := walkExtendedPartitions(readAt, lbaStart, sectorSize)
			if err != nil {
				return nil, err
			}

			partitions = append(partitions, extended...)

		default:
			p, ok := tryPartitionAt(readAt, int64(lbaStart)*int64(sectorSize), lbaCount*uint64(sectorSize), sectorSize)
			if ok {
				partitions = append(partitions, p)
			}
		}
	}

	return partitions, nil
}

// walkExtendedPartitions follows the EBR singly-linked chain, bounding the
// walk at maxEbrHops to defend against a cyclic chain on corrupted media.
// Every EBR in the chain is addressed relative to extendedStartLba, the
// extended partition's own base LBA — not cumulatively from the previous
// EBR — so nextLba starts at 0 and hop 0 reads the EBR at extendedStartLba
// itself.
func walkExtendedPartitions(readAt func(offset int64, length int) ([]byte, error), extendedStartLba uint64, sectorSize uint32) ([]Partition, error) {
	var partitions []Partition

	nextLba := uint64(0)
	for hop := 0; hop < maxEbrHops; hop++ {
		ebr, err := readAt(int64(extendedStartLba+nextLba)*int64(sectorSize), mbrSize)
		if err != nil {
			return nil, err
		}

		if len(ebr) < mbrSize || ebr[510] != mbrSignature[0] || ebr[511] != mbrSignature[1] {
			break
		}

		thisEntry := ebr[mbrPartitionTableOffset:]
		lbaStart := uint64(defaultEncoding.Uint32(thisEntry[8:12]))
		lbaCount := uint64(defaultEncoding.Uint32(thisEntry[12:16]))

		if lbaStart != 0 {
			absoluteStart := (extendedStartLba + nextLba + lbaStart) * uint64(sectorSize)
			if p, ok := tryPartitionAt(readAt, int64(absoluteStart), lbaCount*uint64(sectorSize), sectorSize); ok {
				partitions = append(partitions, p)
			}
		}

		nextEntry := ebr[mbrPartitionTableOffset+mbrPartitionEntrySize:]
		nextRelativeLba := uint64(defaultEncoding.Uint32(nextEntry[8:12]))
		if nextRelativeLba == 0 {
			break
		}

		nextLba = nextRelativeLba
	}

	return partitions, nil
}

// tryPartitionAt validates a single candidate partition strictly against
// sectorSize (the candidate under which it was reached), rather than
// re-probing every sector size: an MBR/EBR/GPT entry and the VBR it points
// at always agree on the disk's physical sector size.
func tryPartitionAt(readAt func(offset int64, length int) ([]byte, error), offset int64, declaredLength uint64, sectorSize uint32) (Partition, bool) {
	bs, err := probeVbrAt(readAt, offset, sectorSize)
	if err != nil {
		return Partition{}, false
	}

	length := declaredLength
	if length == 0 {
		length = bs.TotalSectors * uint64(sectorSize)
	}

	return Partition{StartOffset: uint64(offset), Length: length, BootSector: bs}, true
}

// probeVbrAt decodes a VBR at offset against exactly one sector size.
func probeVbrAt(readAt func(offset int64, length int) ([]byte, error), offset int64, sectorSize uint32) (BootSector, error) {
	raw, err := readAt(offset, int(sectorSize))
	if err != nil {
		return BootSector{}, err
	}

	return DecodeBootSector(raw, sectorSize)
}

// locateGptPartitions reads the GPT header at LBA 1 and its partition entry
// array, probing every entry whose type GUID is non-zero for a valid VBR.
// All offsets use sectorSize, the candidate sector size under which this
// attempt is being made.
func locateGptPartitions(readAt func(offset int64, length int) ([]byte, error), sectorSize uint32) ([]Partition, error) {
	header, err := readAt(int64(sectorSize), mbrSize)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(header[0:8], gptSignature) {
		return nil, log.Errorf("GPT header signature not found at LBA 1")
	}

	entryLba := defaultEncoding.Uint64(header[72:80])
	entryCount := defaultEncoding.Uint32(header[80:84])
	entrySize := defaultEncoding.Uint32(header[84:88])

	if entryCount == 0 || entryCount > 16384 || entrySize < 128 {
		return nil, log.Errorf("implausible GPT entry array: count=(%d) size=(%d)", entryCount, entrySize)
	}

	tableBytes := uint64(entryCount) * uint64(entrySize)
	table, err := readAt(int64(entryLba)*int64(sectorSize), int(tableBytes))
	if err != nil {
		return nil, err
	}

	var partitions []Partition

	zeroGuid := make([]byte, 16)
	for i := uint32(0); i < entryCount; i++ {
		entry := table[uint64(i)*uint64(entrySize):]
		if len(entry) < 128 {
			break
		}

		typeGuid := entry[0:16]
		if bytes.Equal(typeGuid, zeroGuid) {
			continue
		}

		firstLba := defaultEncoding.Uint64(entry[32:40])
		lastLba := defaultEncoding.Uint64(entry[40:48])
		if lastLba < firstLba {
			continue
		}

		length := (lastLba - firstLba + 1) * uint64(sectorSize)
		if p, ok := tryPartitionAt(readAt, int64(firstLba)*int64(sectorSize), length, sectorSize); ok {
			partitions = append(partitions, p)
		}
	}

	return partitions, nil
}
