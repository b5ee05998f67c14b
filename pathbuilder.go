package ntfsmft

import (
	"strings"
	"time"
)

const (
	// rootEntry is the NTFS root directory's fixed MFT entry number.
	rootEntry = 5

	orphanMarker = "<ORPHAN_OR_REALLOCATED>"
	loopMarker   = "<CORRUPTED_LOOP>"
)

// pathNode is what pass 1 records per live, non-extent entry.
type pathNode struct {
	ParentEntry uint64
	ParentSeq   uint16
	SelfSeq     uint16
	Name        string
}

// PathBuilder implements two-pass parent-chain resolution: populate in
// pass 1, resolve (read-only) in pass 2.
type PathBuilder struct {
	nodes map[uint64]pathNode

	volumeBirth     time.Time
	haveVolumeBirth bool
}

// NewPathBuilder creates an empty path table.
func NewPathBuilder() *PathBuilder {
	return &PathBuilder{nodes: make(map[uint64]pathNode)}
}

// Observe is pass 1: record one live, non-extent entry's parent link and
// best name, and fold its $SI creation time into the running volume-birth
// estimate if entry is in [0, 11].
func (pb *PathBuilder) Observe(entry uint64, fn FileNameAttribute, siCreationTime time.Time) {
	pb.nodes[entry] = pathNode{
		ParentEntry: fn.ParentDirectory,
		ParentSeq:   fn.ParentSequence,
		SelfSeq:     0,
		Name:        fn.Name,
	}

	if entry <= 11 {
		if !siCreationTime.IsZero() && (!pb.haveVolumeBirth || siCreationTime.Before(pb.volumeBirth)) {
			pb.volumeBirth = siCreationTime
			pb.haveVolumeBirth = true
		}
	}
}

// SetSequence records an entry's own sequence number, used by pass 2 to
// validate that a stored parent pointer still refers to the same
// generation of that entry (orphan/reallocation detection).
func (pb *PathBuilder) SetSequence(entry uint64, seq uint16) {
	node, ok := pb.nodes[entry]
	if !ok {
		return
	}

	node.SelfSeq = seq
	pb.nodes[entry] = node
}

// VolumeBirth returns the minimum $SI creation time observed among entries
// 0..11, or the zero Time if none were observed.
func (pb *PathBuilder) VolumeBirth() time.Time {
	return pb.volumeBirth
}

// Resolve is pass 2: build the full backslash-separated path for entry,
// given its expected sequence number (0 means "accept whatever is
// stored"). A broken chain terminates with an orphan or loop marker rather
// than failing the whole parse.
func (pb *PathBuilder) Resolve(entry uint64, expectedSeq uint16) string {
	var components []string

	visited := make(map[uint64]bool)
	current := entry
	currentExpectedSeq := expectedSeq

	for {
		if current == rootEntry {
			break
		}

		if visited[current] {
			components = append(components, loopMarker)
			break
		}

		visited[current] = true

		node, ok := pb.nodes[current]
		if !ok {
			components = append(components, orphanMarker)
			break
		}

		if currentExpectedSeq != 0 && node.SelfSeq != 0 && node.SelfSeq != currentExpectedSeq {
			components = append(components, orphanMarker)
			break
		}

		if node.Name != "." && node.Name != "" {
			components = append(components, node.Name)
		}

		if node.ParentEntry == current {
			break
		}

		currentExpectedSeq = node.ParentSeq
		current = node.ParentEntry
	}

	if len(components) == 0 {
		return `\`
	}

	reversed := make([]string, len(components))
	for i, c := range components {
		reversed[len(components)-1-i] = c
	}

	return `\` + strings.Join(reversed, `\`)
}
