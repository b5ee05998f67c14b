package ntfsmft

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
	"sort"

	humanize "github.com/dustin/go-humanize"

	"github.com/dsoprea/go-logging"
)

const (
	extractCopyChunkSize = 1 << 20 // 1 MiB

	// maxAttributeListBytes bounds a non-resident $ATTRIBUTE_LIST read to
	// 1 MiB, far beyond what a legitimate one ever needs.
	maxAttributeListBytes = 1 << 20
)

// ProgressFunc receives a human-readable progress line during extraction.
type ProgressFunc func(message string)

// extentTarget is one $DATA extent the record-0 $ATTRIBUTE_LIST points at.
type extentTarget struct {
	StartVcn uint64
	Entry    uint64
	Seq      uint16
}

// ExtractMft locates the volume, reads record 0 and its extents, assembles
// the $MFT runlist end-to-end, and copies the resulting logical byte
// stream to out. It returns the metadata to be written to the sidecar
// document.
func ExtractMft(readAt func(offset int64, length int) ([]byte, error), sourceLabel string, out io.Writer, progress ProgressFunc) (meta VolumeMeta, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("extraction panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if progress == nil {
		progress = func(string) {}
	}

	partitions, err := LocateNtfsPartitions(readAt)
	log.PanicIf(err)

	if len(partitions) == 0 {
		log.Panicf("no NTFS partition found")
	}

	partition := partitions[0]
	bs := partition.BootSector

	progress("located NTFS volume at byte offset " + humanize.Comma(int64(partition.StartOffset)))

	recordSize, err := bs.FileRecordSize()
	log.PanicIf(err)

	bytesPerCluster := bs.BytesPerCluster()

	partitionReadAt := func(offset int64, length int) ([]byte, error) {
		return readAt(int64(partition.StartOffset)+offset, length)
	}

	record0Offset := int64(bs.MFTLogicalClusterNumber) * int64(bytesPerCluster)
	record0, err := partitionReadAt(record0Offset, int(recordSize))
	log.PanicIf(err)

	header0, err := DecodeRecordHeader(record0, recordSize)
	log.PanicIf(err)

	if header0.Signature != "FILE" {
		log.Panicf("$MFT record 0 signature is not FILE: [%s]", header0.Signature)
	}

	if _, err := ApplyFixup(record0, header0.UpdateSequenceOffset, header0.UpdateSequenceSize, uint32(bs.BytesPerSector)); err != nil {
		log.PanicIf(err)
	}

	var (
		baseRuns              []DataRun
		expectedAllocatedSize uint64
		extents               []extentTarget
		lastAttrOffset        = -1
	)

	err = IterateAttributes(record0, int(header0.FirstAttributeOffset), func(h AttributeHeader, offset int) error {
		if offset <= lastAttrOffset {
			log.Panicf("record-0 attribute offsets are non-increasing at (%d)", offset)
		}

		lastAttrOffset = offset

		switch h.Type {
		case AttributeTypeAttributeList:
			var entries []AttributeListEntry

			if h.NonResident {
				runs, err := h.Runlist(record0, offset)
				if err != nil {
					return err
				}

				totalBytes := TotalClusters(runs) * bytesPerCluster
				if totalBytes < h.RealSize {
					return log.Errorf("$ATTRIBUTE_LIST runs (%d bytes) shorter than declared real size (%d)", totalBytes, h.RealSize)
				}

				readSize := h.RealSize
				if readSize > maxAttributeListBytes {
					readSize = maxAttributeListBytes
				}

				reader := NewMftReader(runs, bytesPerCluster, partition.StartOffset, readAt)
				buf := make([]byte, readSize)
				if _, err := reader.ReadAt(buf, 0); err != nil && err != io.EOF {
					return err
				}

				entries, err = DecodeAttributeList(buf)
				if err != nil {
					return err
				}
			} else {
				value, err := h.Value(record0, offset)
				if err != nil {
					return err
				}

				entries, err = DecodeAttributeList(value)
				if err != nil {
					return err
				}
			}

			for _, e := range entries {
				if e.Type == AttributeTypeData && e.Name == "" {
					extents = append(extents, extentTarget{StartVcn: e.StartingVcn, Entry: e.ReferenceEntry, Seq: e.ReferenceSeq})
				}
			}

		case AttributeTypeData:
			if h.NameLength != 0 {
				return nil
			}

			if !h.NonResident {
				return nil
			}

			expectedAllocatedSize = h.AllocatedSize

			runs, err := h.Runlist(record0, offset)
			if err != nil {
				return err
			}

			baseRuns = append(baseRuns, runs...)
		}

		return nil
	})
	log.PanicIf(err)

	for _, target := range extents {
		extentRaw, err := fetchExtentRecord(readAt, partition.StartOffset, baseRuns, bytesPerCluster, target.Entry, recordSize)
		if err != nil {
			progress("skipping unreachable extent entry " + humanize.Comma(int64(target.Entry)))
			continue
		}

		extentHeader, err := DecodeRecordHeader(extentRaw, recordSize)
		if err != nil {
			continue
		}

		if extentHeader.SequenceNumber != target.Seq {
			log.Panicf("extent entry (%d) sequence mismatch: got (%d) want (%d)", target.Entry, extentHeader.SequenceNumber, target.Seq)
		}

		if _, err := ApplyFixup(extentRaw, extentHeader.UpdateSequenceOffset, extentHeader.UpdateSequenceSize, uint32(bs.BytesPerSector)); err != nil {
			log.PanicIf(err)
		}

		err = IterateAttributes(extentRaw, int(extentHeader.FirstAttributeOffset), func(h AttributeHeader, offset int) error {
			if h.Type != AttributeTypeData || h.NameLength != 0 || !h.NonResident {
				return nil
			}

			if h.StartingVcn != target.StartVcn {
				return nil
			}

			runs, err := h.Runlist(extentRaw, offset)
			if err != nil {
				return err
			}

			baseRuns = append(baseRuns, runs...)
			return nil
		})
		log.PanicIf(err)
	}

	sortRunsByVcn(baseRuns)

	if err := checkRunlistInvariants(baseRuns, expectedAllocatedSize, bytesPerCluster); err != nil {
		log.PanicIf(err)
	}

	totalBytes := TotalClusters(baseRuns) * bytesPerCluster

	progress("copying $MFT: " + humanize.Bytes(totalBytes))

	written, err := copyRuns(out, baseRuns, bytesPerCluster, partition.StartOffset, readAt)
	log.PanicIf(err)

	if written != totalBytes {
		log.Panicf("copied byte count (%d) does not match expected (%d)", written, totalBytes)
	}

	meta = VolumeMeta{
		BytesPerSector:         bs.BytesPerSector,
		SectorsPerCluster:      bs.SectorsPerCluster,
		BytesPerCluster:        bytesPerCluster,
		MftLcn:                 bs.MFTLogicalClusterNumber,
		MftMirrorLcn:           bs.MFTMirrorLogicalClusterNumber,
		ClustersPerIndexBuffer: bs.ClustersPerIndexBuffer,
		MftRecordSize:          recordSize,
		VolumeSerialNumber:     bs.VolumeSerialNumber,
		Source:                 sourceLabel,
	}

	return meta, nil
}

// WriteSidecarMeta writes the sidecar `<out>.meta.json` document the
// parser reads to recover volume geometry without re-probing the image.
func WriteSidecarMeta(path string, meta VolumeMeta) error {
	f, err := os.Create(path)
	if err != nil {
		return log.Wrap(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	if err := enc.Encode(meta); err != nil {
		return log.Wrap(err)
	}

	return nil
}

// sortRunsByVcn orders runs by their declared VcnStart: runs are collected
// in on-disk $ATTRIBUTE_LIST/extent order, which need not match logical VCN
// order once more than one extent is involved.
func sortRunsByVcn(runs []DataRun) {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].VcnStart < runs[j].VcnStart })
}

// checkRunlistInvariants enforces the post-assembly runlist invariants
// against each run's own declared VcnStart, not a re-derived running sum:
// the first run must start at VCN 0, every run must abut the next with no
// gap or overlap, no run may have zero length, and the assembled runlist
// must cover at least the declared allocated size.
func checkRunlistInvariants(runs []DataRun, expectedAllocatedSize, bytesPerCluster uint64) error {
	if len(runs) == 0 {
		return log.Errorf("assembled runlist is empty")
	}

	if runs[0].VcnStart != 0 {
		return log.Errorf("first run does not start at vcn 0, got (%d)", runs[0].VcnStart)
	}

	for i, r := range runs {
		if r.ClusterCount == 0 {
			return log.Errorf("run (%d) has zero cluster count", i)
		}

		if !r.IsSparse && r.StartLcn < 0 {
			return log.Errorf("run (%d) has negative lcn (%d)", i, r.StartLcn)
		}

		if i > 0 {
			expectedVcn := runs[i-1].VcnStart + runs[i-1].ClusterCount
			if r.VcnStart != expectedVcn {
				return log.Errorf("run (%d) starts at vcn (%d), expected (%d) (gap or overlap)", i, r.VcnStart, expectedVcn)
			}
		}
	}

	last := runs[len(runs)-1]
	totalVcn := last.VcnStart + last.ClusterCount
	totalBytes := totalVcn * bytesPerCluster
	if totalBytes < expectedAllocatedSize {
		return log.Errorf("assembled runlist bytes (%d) < declared allocated size (%d)", totalBytes, expectedAllocatedSize)
	}

	return nil
}

func fetchExtentRecord(readAt func(offset int64, length int) ([]byte, error), partitionOffset uint64, mftRuns []DataRun, bytesPerCluster uint64, entry uint64, recordSize uint32) ([]byte, error) {
	if len(mftRuns) == 0 {
		return nil, log.Errorf("no $MFT $DATA runs to resolve extent entry (%d) through", entry)
	}

	reader := NewMftReader(mftRuns, bytesPerCluster, partitionOffset, readAt)
	return reader.ReadRecord(entry, recordSize)
}

func copyRuns(out io.Writer, runs []DataRun, bytesPerCluster, partitionOffset uint64, readAt func(offset int64, length int) ([]byte, error)) (uint64, error) {
	var written uint64

	for _, r := range runs {
		runBytes := r.ClusterCount * bytesPerCluster

		if r.IsSparse {
			zero := make([]byte, extractCopyChunkSize)
			remaining := runBytes

			for remaining > 0 {
				n := uint64(len(zero))
				if n > remaining {
					n = remaining
				}

				if _, err := out.Write(zero[:n]); err != nil {
					return written, log.Wrap(err)
				}

				written += n
				remaining -= n
			}

			continue
		}

		physicalOffset := int64(partitionOffset) + r.StartLcn*int64(bytesPerCluster)
		remaining := runBytes

		for remaining > 0 {
			chunk := uint64(extractCopyChunkSize)
			if chunk > remaining {
				chunk = remaining
			}

			buf, err := readAt(physicalOffset, int(chunk))
			if err != nil {
				return written, log.Wrap(err)
			}

			if uint64(len(buf)) < chunk {
				return written, log.Errorf("short read while copying $MFT at offset (%d)", physicalOffset)
			}

			if _, err := out.Write(buf[:chunk]); err != nil {
				return written, log.Wrap(err)
			}

			written += chunk
			physicalOffset += int64(chunk)
			remaining -= chunk
		}
	}

	return written, nil
}
