package ntfsmft

import (
	"encoding/binary"
	"testing"
)

func TestLocateNtfsPartitionsSuperfloppy(t *testing.T) {
	vbr := buildBootSector(512, 8, 4, 4194304, 2, 40960)

	readAt := func(offset int64, length int) ([]byte, error) {
		buf := make([]byte, length)
		if offset == 0 {
			copy(buf, vbr)
		}

		return buf, nil
	}

	partitions, err := LocateNtfsPartitions(readAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(partitions) != 1 {
		t.Fatalf("wrong partition count: (%d)", len(partitions))
	}

	if partitions[0].StartOffset != 0 {
		t.Fatalf("wrong start offset: (%d)", partitions[0].StartOffset)
	}
}

func TestLocateNtfsPartitionsMbr(t *testing.T) {
	const partitionLba = 63

	mbr := make([]byte, 512)
	mbr[510] = 0x55
	mbr[511] = 0xAA

	entry := mbr[446:462]
	entry[4] = 0x07 // NTFS
	binary.LittleEndian.PutUint32(entry[8:12], partitionLba)
	binary.LittleEndian.PutUint32(entry[12:16], 40960)

	vbr := buildBootSector(512, 8, 4, 4194304, 2, 40960)

	readAt := func(offset int64, length int) ([]byte, error) {
		buf := make([]byte, length)

		switch offset {
		case 0:
			copy(buf, mbr)
		case partitionLba * 512:
			copy(buf, vbr)
		}

		return buf, nil
	}

	partitions, err := LocateNtfsPartitions(readAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(partitions) != 1 {
		t.Fatalf("wrong partition count: (%d)", len(partitions))
	}

	if partitions[0].StartOffset != partitionLba*512 {
		t.Fatalf("wrong start offset: (%d)", partitions[0].StartOffset)
	}
}
