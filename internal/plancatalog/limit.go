package plancatalog

import (
	"encoding/json"
	"strconv"
)

// UnlimitedSentinel is the storage and wire encoding of Unlimited.
const UnlimitedSentinel int64 = -1

// Limit is either a finite non-negative allowance or unlimited. The zero
// value is Finite(0).
type Limit struct {
	n         int64
	unlimited bool
}

// Finite returns a finite limit. Negative values clamp to zero.
func Finite(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

func Unlimited() Limit {
	return Limit{unlimited: true}
}

// LimitFromSentinel decodes a stored value where any negative number means
// unlimited.
func LimitFromSentinel(v int64) Limit {
	if v < 0 {
		return Unlimited()
	}
	return Finite(v)
}

// Sentinel encodes the limit for storage and JSON.
func (l Limit) Sentinel() int64 {
	if l.unlimited {
		return UnlimitedSentinel
	}
	return l.n
}

func (l Limit) IsUnlimited() bool { return l.unlimited }

// Max returns the finite allowance; it is meaningless for unlimited limits.
func (l Limit) Max() int64 { return l.n }

// Admits reports whether one more action fits given used actions so far.
func (l Limit) Admits(used int64) bool {
	return l.unlimited || used < l.n
}

// Remaining is max(0, limit-used), or -1 when unlimited.
func (l Limit) Remaining(used int64) int64 {
	if l.unlimited {
		return UnlimitedSentinel
	}
	if rem := l.n - used; rem > 0 {
		return rem
	}
	return 0
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.n, 10)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Sentinel())
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = LimitFromSentinel(v)
	return nil
}
