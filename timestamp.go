package ntfsmft

import "time"

// DefaultTimestompThreshold is the default slack allowed between a $FN and
// $SI timestamp before the difference is flagged as timestomping. Exposed
// as a tunable rather than hard-coded.
const DefaultTimestompThreshold = 100 * time.Second

// volumeBirthSlack is how far before the volume's earliest observed
// creation time an $SI creation time may legitimately fall.
const volumeBirthSlack = 1 * time.Second

// EvaluateHeuristics computes the Timestomped/Copied/USecZeros flags from a
// record's $SI and $FN timestamp sets. volumeBirth is
// the minimum $SI creation time observed across entries 0..11; a zero value
// disables the volume-birth check.
func EvaluateHeuristics(si, fn TimestampSet, volumeBirth time.Time, threshold time.Duration) (timestomped, copied, uSecZeros bool) {
	if threshold <= 0 {
		threshold = DefaultTimestompThreshold
	}

	timestomped = exceedsThreshold(fn.Created, si.Created, threshold) ||
		exceedsThreshold(fn.Modified, si.Modified, threshold) ||
		exceedsThreshold(fn.MftModified, si.MftModified, threshold) ||
		exceedsThreshold(fn.Accessed, si.Accessed, threshold)

	if !volumeBirth.IsZero() && si.Created.Before(volumeBirth.Add(-volumeBirthSlack)) {
		timestomped = true
	}

	copied = si.Created.After(si.Modified)

	zeroSi := countZeroNanoseconds(si)
	zeroFn := countZeroNanoseconds(fn)
	uSecZeros = zeroSi >= 3 && zeroFn <= 1

	return timestomped, copied, uSecZeros
}

// exceedsThreshold is directional: it flags only a much later than b
// (i.e. $FN is later than $SI by more than threshold, as when $SI has been
// backdated). A newer $SI than $FN is not timestomping and must not trip
// this check.
func exceedsThreshold(a, b time.Time, threshold time.Duration) bool {
	return a.Sub(b) > threshold
}

func countZeroNanoseconds(ts TimestampSet) int {
	count := 0
	for _, t := range []time.Time{ts.Created, ts.Modified, ts.MftModified, ts.Accessed} {
		if t.Nanosecond() == 0 {
			count++
		}
	}

	return count
}
