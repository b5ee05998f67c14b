package ntfsmft

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// bytesReaderAt adapts a []byte to io.ReaderAt for ParseMft.
type bytesReaderAt struct{ data []byte }

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, bytes.ErrTooLarge
	}

	return n, nil
}

func buildSimpleMftImage(recordSize int) []byte {
	// Entry 5 is root (never decoded, just needs to exist as padding).
	// Entry 100: a directory named "Users", parent = root(5).
	// Entry 101: a file named "alice.txt", parent = 100.
	image := make([]byte, recordSize*102)

	writeRecord := func(entry uint64, name string, parentEntry uint64, isDirectory bool) {
		recordOffset := int(entry) * recordSize
		record := image[recordOffset : recordOffset+recordSize]

		flags := uint16(RecordFlagInUse)
		if isDirectory {
			flags |= uint16(RecordFlagIsDirectory)
		}

		header := buildRecordHeader("FILE", 48, 3, flags, 56, uint32(recordSize), uint32(recordSize), 0)
		copy(record, header)

		fnValue := buildFileNameValue(parentEntry, 1, name, FileNameNamespaceWin32)
		length := buildResidentAttribute(record, 56, AttributeTypeFileName, fnValue)

		siValue := buildStandardInformationValue()
		siLength := buildResidentAttribute(record, 56+length, AttributeTypeStandardInformation, siValue)

		binary.LittleEndian.PutUint32(record[56+length+siLength:56+length+siLength+4], uint32(AttributeTypeEnd))

		binary.LittleEndian.PutUint16(record[16:18], 1) // sequence_number
	}

	writeRecord(100, "Users", rootEntry, true)
	writeRecord(101, "alice.txt", 100, false)

	return image
}

func TestParseMftBuildsFullPath(t *testing.T) {
	const recordSize = 1024

	image := buildSimpleMftImage(recordSize)
	r := bytesReaderAt{data: image}

	opts := ParseOptions{
		Meta: VolumeMeta{MftRecordSize: recordSize, BytesPerSector: 512},
	}

	var entries []MftEntry

	err := ParseMft(r, int64(len(image)), opts, func(e MftEntry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var aliceEntry *MftEntry

	for i := range entries {
		if entries[i].EntryNumber == 101 {
			aliceEntry = &entries[i]
		}
	}

	if aliceEntry == nil {
		t.Fatalf("expected to find entry 101 in parsed output")
	}

	if aliceEntry.FullPath != `\Users\alice.txt` {
		t.Fatalf("wrong full path: [%s]", aliceEntry.FullPath)
	}

	if aliceEntry.IsDirectory {
		t.Fatalf("did not expect entry 101 to be a directory")
	}
}
