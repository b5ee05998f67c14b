package ntfsmft

import (
	"encoding/binary"
	"testing"
)

type fakeRecordSource struct {
	records map[uint64][]byte
}

func (s fakeRecordSource) ReadRecordAt(entry uint64) ([]byte, error) {
	return s.records[entry], nil
}

func TestGatherRecordResidentAttributeList(t *testing.T) {
	const recordSize = 1024

	base := make([]byte, recordSize)
	header := buildRecordHeader("FILE", 48, 3, uint16(RecordFlagInUse), 56, recordSize, recordSize, 0)
	copy(base, header)

	listEntry := make([]byte, 26)
	binary.LittleEndian.PutUint32(listEntry[0:4], uint32(AttributeTypeData))
	binary.LittleEndian.PutUint16(listEntry[4:6], 26)
	listEntry[7] = 26
	ref := uint64(16) // entry 16, sequence 0
	binary.LittleEndian.PutUint64(listEntry[16:24], ref)

	length := buildResidentAttribute(base, 56, AttributeTypeAttributeList, listEntry)
	binary.LittleEndian.PutUint32(base[56+length:56+length+4], uint32(AttributeTypeEnd))

	extent := make([]byte, recordSize)
	extentHeader := buildRecordHeader("FILE", 48, 3, uint16(RecordFlagInUse), 56, recordSize, recordSize, uint64(5)) // base entry 5, sequence 0
	copy(extent, extentHeader)
	binary.LittleEndian.PutUint32(extent[56:60], uint32(AttributeTypeEnd))

	baseHeader, err := DecodeRecordHeader(base, recordSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source := fakeRecordSource{records: map[uint64][]byte{16: extent}}

	gathered, err := GatherRecord(5, baseHeader, base, recordSize, 512, source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gathered.Records) != 2 {
		t.Fatalf("expected base + 1 extent, got (%d) records", len(gathered.Records))
	}

	if gathered.ComplexExtents {
		t.Fatalf("did not expect complex_extents for a resident $ATTRIBUTE_LIST")
	}
}

func TestGatherRecordNonResidentAttributeListSetsComplexExtents(t *testing.T) {
	const recordSize = 1024

	base := make([]byte, recordSize)
	header := buildRecordHeader("FILE", 48, 3, uint16(RecordFlagInUse), 56, recordSize, recordSize, 0)
	copy(base, header)

	binary.LittleEndian.PutUint32(base[56:60], uint32(AttributeTypeAttributeList))
	binary.LittleEndian.PutUint32(base[60:64], 72) // attribute length
	base[64] = 1                                   // non-resident
	binary.LittleEndian.PutUint16(base[88:90], 64)  // runlist_offset, relative to attribute start
	// base[120] (attrOffset 56 + runlistOffset 64) is already 0x00 (empty runlist terminator).
	binary.LittleEndian.PutUint32(base[128:132], uint32(AttributeTypeEnd))

	baseHeader, err := DecodeRecordHeader(base, recordSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source := fakeRecordSource{records: map[uint64][]byte{}}

	gathered, err := GatherRecord(5, baseHeader, base, recordSize, 512, source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !gathered.ComplexExtents {
		t.Fatalf("expected complex_extents=true for a non-resident $ATTRIBUTE_LIST")
	}
}
