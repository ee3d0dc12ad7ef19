package l3decode

// WordBits expands the low width bits of w, most significant first.
func WordBits(w uint32, width int) []uint8 {
	out := make([]uint8, width)
	for i := 0; i < width; i++ {
		out[i] = uint8(w>>(width-1-i)) & 1
	}
	return out
}

// BitsWord packs up to 32 bits, most significant first.
func BitsWord(bits []uint8) uint32 {
	var w uint32
	for _, b := range bits {
		w = w<<1 | uint32(b&1)
	}
	return w
}

// FindPattern slides pattern across bits and returns the first offset at or
// after start where it matches exactly. Not finding a pattern is an ordinary
// result, not an error.
func FindPattern(bits, pattern []uint8, start int) (int, bool) {
	if start < 0 {
		start = 0
	}
	n := len(pattern)
	if n == 0 {
		return 0, false
	}
	for i := start; i+n <= len(bits); i++ {
		match := true
		for j := 0; j < n; j++ {
			if bits[i+j] != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return i, true
		}
	}
	return 0, false
}

// FindRun finds the first run of at least minLen bits equal to value at or
// after start and returns the offset just past the run. A run that reaches
// the end of bits is reported with offset len(bits).
func FindRun(bits []uint8, value uint8, minLen, start int) (int, bool) {
	if start < 0 {
		start = 0
	}
	run := 0
	for i := start; i < len(bits); i++ {
		if bits[i] == value {
			run++
			continue
		}
		if run >= minLen {
			return i, true
		}
		run = 0
	}
	if minLen > 0 && run >= minLen {
		return len(bits), true
	}
	return 0, false
}
