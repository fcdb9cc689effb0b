package curvelog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unit conversion factors to milliseconds.
const (
	msPerDay    int64 = 86_400_000
	msPerHour   int64 = 3_600_000
	msPerMinute int64 = 60_000
	msPerSecond int64 = 1_000
)

// durationPattern: T# then optional d, h, m, s components in that order and a
// mandatory ms component. RE2 picks the path where a lone "12ms" is read as
// milliseconds rather than "12m" followed by a dangling "s".
var durationPattern = regexp.MustCompile(`^T#(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?(\d+)ms$`)

var durationFactors = [...]int64{msPerDay, msPerHour, msPerMinute, msPerSecond, 1}

// DecodeDuration converts a device duration string such as "T#1d19h56m1s172ms"
// into milliseconds. Malformed input returns a *DurationError wrapping
// ErrInvalidDuration; it is never reported as a zero duration.
func DecodeDuration(s string) (int64, error) {
	if !strings.HasPrefix(s, DurationPrefix) {
		return 0, &DurationError{Input: s, Reason: "missing T# prefix"}
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &DurationError{Input: s, Reason: "expected [Nd][Nh][Nm][Ns]Nms"}
	}

	var total int64
	for i, factor := range durationFactors {
		digits := m[i+1]
		if digits == "" {
			continue
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, &DurationError{Input: s, Reason: "component out of range"}
		}
		if v > (math.MaxInt64-total)/factor {
			return 0, &DurationError{Input: s, Reason: "duration overflows int64 milliseconds"}
		}
		total += v * factor
	}
	return total, nil
}

// FormatDuration renders milliseconds back into the device grammar, omitting
// leading zero units. FormatDuration(DecodeDuration(s)) is canonical, not
// necessarily s: "T#90m0ms" becomes "T#1h30m0s0ms".
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	var b strings.Builder
	b.WriteString(DurationPrefix)
	rest := ms
	started := false
	for i, unit := range [...]string{"d", "h", "m", "s"} {
		v := rest / durationFactors[i]
		rest %= durationFactors[i]
		if v == 0 && !started {
			continue
		}
		started = true
		b.WriteString(strconv.FormatInt(v, 10))
		b.WriteString(unit)
	}
	b.WriteString(strconv.FormatInt(rest, 10))
	b.WriteString("ms")
	return b.String()
}
