package hostfuncs

import "context"

// UnixTimeName is the import name of the wall-clock capability.
const UnixTimeName = "unixtime"

// UnixTime returns the "unixtime: () -> i64" capability, reporting the
// current Unix time in seconds as read from clock.
func UnixTime(clock Clock) Capability {
	if clock == nil {
		clock = SystemClock{}
	}
	return Capability{
		Name:    UnixTimeName,
		Results: []ValueType{ValueTypeI64},
		Func: func(_ context.Context, stack []uint64) {
			stack[0] = uint64(clock.Now().Unix()) //nolint:gosec // G115: pre-1970 clocks wrap, guests see u64
		},
	}
}
