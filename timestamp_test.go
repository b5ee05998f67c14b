package ntfsmft

import (
	"testing"
	"time"
)

func TestEvaluateHeuristicsTimestomped(t *testing.T) {
	si := TimestampSet{
		Created:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Modified:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		MftModified: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Accessed:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	fn := TimestampSet{
		Created:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Modified:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		MftModified: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Accessed:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	timestomped, _, _ := EvaluateHeuristics(si, fn, time.Time{}, 0)
	if !timestomped {
		t.Fatalf("expected timestomped=true")
	}
}

func TestEvaluateHeuristicsWithinThreshold(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	si := TimestampSet{Created: base, Modified: base, MftModified: base, Accessed: base}
	fn := TimestampSet{Created: base.Add(50 * time.Second), Modified: base, MftModified: base, Accessed: base}

	timestomped, _, _ := EvaluateHeuristics(si, fn, time.Time{}, 0)
	if timestomped {
		t.Fatalf("expected timestomped=false within default threshold")
	}
}

func TestEvaluateHeuristicsSiNewerThanFnNotFlagged(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	si := TimestampSet{Created: base.Add(time.Hour), Modified: base, MftModified: base, Accessed: base}
	fn := TimestampSet{Created: base, Modified: base, MftModified: base, Accessed: base}

	timestomped, _, _ := EvaluateHeuristics(si, fn, time.Time{}, 0)
	if timestomped {
		t.Fatalf("expected timestomped=false: $SI newer than $FN is not timestomping")
	}
}

func TestEvaluateHeuristicsCopied(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	si := TimestampSet{Created: base.Add(time.Hour), Modified: base, MftModified: base, Accessed: base}
	fn := si

	_, copied, _ := EvaluateHeuristics(si, fn, time.Time{}, 0)
	if !copied {
		t.Fatalf("expected copied=true when creation time is after modification time")
	}
}

func TestEvaluateHeuristicsUSecZeros(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	withNanos := time.Date(2020, 1, 1, 0, 0, 0, 123, time.UTC)

	si := TimestampSet{Created: base, Modified: base, MftModified: base, Accessed: withNanos}
	fn := TimestampSet{Created: withNanos, Modified: withNanos, MftModified: withNanos, Accessed: base}

	_, _, uSecZeros := EvaluateHeuristics(si, fn, time.Time{}, 0)
	if !uSecZeros {
		t.Fatalf("expected u_sec_zeros=true: 3 of SI's timestamps are zero-nanosecond, only 1 of FN's is")
	}
}

func TestEvaluateHeuristicsVolumeBirth(t *testing.T) {
	volumeBirth := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	si := TimestampSet{
		Created:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Modified:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		MftModified: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Accessed:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	fn := si

	timestomped, _, _ := EvaluateHeuristics(si, fn, volumeBirth, 0)
	if !timestomped {
		t.Fatalf("expected timestomped=true when $SI creation predates volume birth")
	}
}
