package core

// itoa64 formats a signed 64-bit value without the fmt package.
func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	negative := n < 0

	// Work on the unsigned magnitude so MinInt64 survives negation
	u := uint64(n)
	if negative {
		u = -u
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// ftoa formats a float with three decimals, enough for steps/ms and ms values.
func ftoa(f float64) string {
	negative := f < 0
	if negative {
		f = -f
	}
	milli := uint64(f*1000 + 0.5)
	frac := milli % 1000

	s := utoa64(milli/1000) + "."
	switch {
	case frac < 10:
		s += "00"
	case frac < 100:
		s += "0"
	}
	s += utoa64(frac)
	if negative {
		return "-" + s
	}
	return s
}
