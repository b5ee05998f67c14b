package ntfsmft

import (
	"reflect"

	"github.com/dsoprea/go-logging"
)

// DataRun is one decoded entry of a non-resident attribute's runlist: either
// `ClusterCount` clusters of real, allocated data starting at
// `StartLcn` (absolute, not relative), or a sparse run of `ClusterCount`
// clusters with no on-disk backing (IsSparse true, StartLcn meaningless).
// VcnStart is the run's logical starting position: the attribute's own
// StartingVcn plus the cluster counts of the runs before it in the same
// attribute, so runs from different extents keep the positions their
// attributes declared and gap/overlap checks compare against those.
type DataRun struct {
	VcnStart     uint64
	StartLcn     int64
	ClusterCount uint64
	IsSparse     bool
}

// maxRunlistFieldBytes bounds the length and offset size nibbles: a nibble
// can hold values up to 0xF, but neither field may be wider than 8 bytes,
// the hard ceiling for a signed/unsigned 64-bit quantity.
const maxRunlistFieldBytes = 8

// DecodeRunlist decodes an NTFS data-run list starting at the front of
// raw, stopping at the terminating 0x00 byte or the end of raw. LCNs are
// resolved to absolute values by accumulating the signed per-run delta
// onto a running total. startVcn is the attribute's own StartingVcn field;
// each run's VcnStart is derived from it by accumulating ClusterCount, so
// it reflects the run's declared logical position, not just local order.
func DecodeRunlist(raw []byte, startVcn uint64) (runs []DataRun, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("runlist decode panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	var currentLcn int64
	currentVcn := startVcn

	pos := 0
	for pos < len(raw) {
		header := raw[pos]
		if header == 0x00 {
			break
		}

		lengthFieldSize := int(header & 0x0F)
		offsetFieldSize := int(header >> 4)

		if lengthFieldSize == 0 {
			log.Panicf("runlist entry at offset (%d) has zero-length length-field", pos)
		}

		if lengthFieldSize > maxRunlistFieldBytes || offsetFieldSize > maxRunlistFieldBytes {
			log.Panicf("runlist entry at offset (%d) has oversized field sizes: (%d)/(%d)", pos, lengthFieldSize, offsetFieldSize)
		}

		pos++

		if pos+lengthFieldSize+offsetFieldSize > len(raw) {
			log.Panicf("runlist entry at offset (%d) runs past end of buffer (len %d)", pos-1, len(raw))
		}

		clusterCount := decodeUnsignedLe(raw[pos : pos+lengthFieldSize])
		pos += lengthFieldSize

		isSparse := offsetFieldSize == 0

		var run DataRun
		run.VcnStart = currentVcn
		run.ClusterCount = clusterCount
		run.IsSparse = isSparse
		currentVcn += clusterCount

		if !isSparse {
			delta := decodeSignedLe(raw[pos : pos+offsetFieldSize])
			pos += offsetFieldSize

			next := currentLcn + delta
			if next < 0 {
				log.Panicf("runlist entry produced negative absolute LCN: (%d)", next)
			}

			currentLcn = next
			run.StartLcn = currentLcn
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// decodeUnsignedLe decodes an unsigned little-endian integer of arbitrary
// byte width (runlist length fields are never sign-extended).
func decodeUnsignedLe(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}

// decodeSignedLe decodes a signed, sign-extended little-endian integer of
// arbitrary byte width (runlist offset fields are two's-complement and must
// be extended from their most-significant stored byte, not from bit 63).
func decodeSignedLe(b []byte) int64 {
	v := decodeUnsignedLe(b)

	topByte := b[len(b)-1]
	if topByte&0x80 != 0 {
		// Sign-extend: fill every byte above the stored width with 0xFF.
		for shift := len(b) * 8; shift < 64; shift += 8 {
			v |= 0xFF << uint(shift)
		}
	}

	return int64(v)
}

// TotalClusters sums the cluster counts of every run, sparse or not.
func TotalClusters(runs []DataRun) uint64 {
	var total uint64
	for _, r := range runs {
		total += r.ClusterCount
	}

	return total
}
