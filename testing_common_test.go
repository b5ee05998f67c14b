package ntfsmft

import "encoding/binary"

// buildBootSector assembles a syntactically valid 512-byte VBR buffer for
// tests, with the invariant-relevant fields set from the given parameters
// and everything else zeroed.
func buildBootSector(bytesPerSector uint16, sectorsPerCluster uint8, mftLcn, mftMirrorLcn uint64, clustersPerFileRecordSegment int8, totalSectors uint64) []byte {
	buf := make([]byte, 512)

	copy(buf[3:11], []byte("NTFS    "))

	binary.LittleEndian.PutUint16(buf[11:13], bytesPerSector)
	buf[13] = byte(sectorsPerCluster)

	binary.LittleEndian.PutUint64(buf[40:48], totalSectors)
	binary.LittleEndian.PutUint64(buf[48:56], mftLcn)
	binary.LittleEndian.PutUint64(buf[56:64], mftMirrorLcn)

	buf[64] = byte(clustersPerFileRecordSegment)
	buf[68] = 1 // clusters_per_index_buffer

	buf[510] = 0x55
	buf[511] = 0xAA

	return buf
}

// buildRecordHeader assembles a 48-byte MFT record header buffer.
func buildRecordHeader(signature string, usaOffset, usaSize uint16, flags uint16, firstAttributeOffset uint16, realSize, allocatedSize uint32, baseRef uint64) []byte {
	buf := make([]byte, 48)

	copy(buf[0:4], []byte(signature))

	binary.LittleEndian.PutUint16(buf[4:6], usaOffset)
	binary.LittleEndian.PutUint16(buf[6:8], usaSize)
	binary.LittleEndian.PutUint16(buf[16:18], 1) // sequence_number
	binary.LittleEndian.PutUint16(buf[18:20], 1) // hard_link_count
	binary.LittleEndian.PutUint16(buf[20:22], firstAttributeOffset)
	binary.LittleEndian.PutUint16(buf[22:24], flags)
	binary.LittleEndian.PutUint32(buf[24:28], realSize)
	binary.LittleEndian.PutUint32(buf[28:32], allocatedSize)
	binary.LittleEndian.PutUint64(buf[32:40], baseRef)

	return buf
}

// applyTestFixup stamps a USA tag/slot layout into record in place,
// mirroring what a real on-disk record looks like before the last 2 bytes
// of each sector are overwritten by the fixup tag: sectorTail is what
// should be recovered by ApplyFixup.
func applyTestFixup(record []byte, usaOffset, usaSize uint16, tag uint16, sectorTails [][2]byte) {
	binary.LittleEndian.PutUint16(record[usaOffset:usaOffset+2], tag)

	for i, tail := range sectorTails {
		slot := usaOffset + 2 + uint16(i)*2
		record[slot] = tail[0]
		record[slot+1] = tail[1]

		sectorEnd := (i+1)*512 - 2
		record[sectorEnd] = byte(tag)
		record[sectorEnd+1] = byte(tag >> 8)
	}
}
