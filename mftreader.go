package ntfsmft

import (
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// MftReader provides random access to logical MFT bytes by translating a
// logical byte offset into a physical disk offset via a runlist, the way
// the extractor has to in order to reach record N without reading the
// entire (possibly huge, possibly fragmented) $MFT stream up front.
type MftReader struct {
	partitionOffset uint64
	bytesPerCluster uint64
	runs            []DataRun
	readAt          func(offset int64, length int) ([]byte, error)

	// runStartVcn[i] is the logical cluster offset where runs[i] begins.
	runStartVcn []uint64
	totalVcn    uint64
}

// NewMftReader builds a reader over an assembled (possibly multi-extent)
// runlist. partitionOffset is the absolute byte offset of the partition the
// runlist's LCNs are relative to.
func NewMftReader(runs []DataRun, bytesPerCluster, partitionOffset uint64, readAt func(offset int64, length int) ([]byte, error)) *MftReader {
	runStartVcn := make([]uint64, len(runs))

	var totalVcn uint64
	for i, r := range runs {
		runStartVcn[i] = r.VcnStart
		if end := r.VcnStart + r.ClusterCount; end > totalVcn {
			totalVcn = end
		}
	}

	return &MftReader{
		partitionOffset: partitionOffset,
		bytesPerCluster: bytesPerCluster,
		runs:            runs,
		readAt:          readAt,
		runStartVcn:     runStartVcn,
		totalVcn:        totalVcn,
	}
}

// Size returns the total logical byte length addressable through the
// runlist (sparse runs included — reads of sparse regions return zeros).
func (r *MftReader) Size() uint64 {
	return r.totalVcn * r.bytesPerCluster
}

// ReadAt reads len(p) bytes starting at logical offset off, satisfying
// io.ReaderAt. Sparse runs read back as zero bytes, matching how Windows
// itself presents a sparse $MFT region.
func (r *MftReader) ReadAt(p []byte, off int64) (n int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("mft-reader panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if off < 0 {
		return 0, log.Errorf("negative read offset: (%d)", off)
	}

	remaining := p
	logicalOffset := uint64(off)

	for len(remaining) > 0 {
		if logicalOffset >= r.Size() {
			if n == 0 {
				return 0, io.EOF
			}

			return n, io.EOF
		}

		runIndex, runByteOffset := r.locateRun(logicalOffset)
		run := r.runs[runIndex]

		runByteLength := run.ClusterCount * r.bytesPerCluster
		chunk := runByteLength - runByteOffset
		if chunk > uint64(len(remaining)) {
			chunk = uint64(len(remaining))
		}

		if run.IsSparse {
			for i := uint64(0); i < chunk; i++ {
				remaining[i] = 0
			}
		} else {
			physicalOffset := r.partitionOffset + uint64(run.StartLcn)*r.bytesPerCluster + runByteOffset
			buf, errRead := r.readAt(int64(physicalOffset), int(chunk))
			log.PanicIf(errRead)

			if uint64(len(buf)) < chunk {
				log.Panicf("short physical read at offset (%d): got (%d) wanted (%d)", physicalOffset, len(buf), chunk)
			}

			copy(remaining[:chunk], buf)
		}

		remaining = remaining[chunk:]
		logicalOffset += chunk
		n += int(chunk)
	}

	return n, nil
}

// locateRun finds the run containing logicalOffset (in bytes) and returns
// its index plus the byte offset within that run.
func (r *MftReader) locateRun(logicalOffset uint64) (int, uint64) {
	logicalVcn := logicalOffset / r.bytesPerCluster
	byteWithinCluster := logicalOffset % r.bytesPerCluster

	for i := len(r.runs) - 1; i >= 0; i-- {
		if logicalVcn >= r.runStartVcn[i] && logicalVcn < r.runStartVcn[i]+r.runs[i].ClusterCount {
			return i, (logicalVcn-r.runStartVcn[i])*r.bytesPerCluster + byteWithinCluster
		}
	}

	log.Panicf("logical offset (%d) not covered by any run", logicalOffset)
	return 0, 0
}

// ReadRecord reads one fixed-size record at logical record index n.
func (r *MftReader) ReadRecord(n uint64, recordSize uint32) ([]byte, error) {
	buf := make([]byte, recordSize)

	_, err := r.ReadAt(buf, int64(n*uint64(recordSize)))
	if err != nil && err != io.EOF {
		return nil, log.Wrap(err)
	}

	return buf, nil
}
