package canary

// RoundUp returns n if it is a multiple of k, otherwise the next multiple of k.
// It panics if k is zero.
func RoundUp(n, k uint32) uint32 {
	if k == 0 {
		panic("canary: RoundUp with zero alignment")
	}
	rem := n % k
	if rem == 0 {
		return n
	}
	return n + (k - rem)
}

// Size returns the number of bytes to paint for stackAvailable bytes of
// unused stack.
//
// Measuring stack usage needs the whole stack painted. Overflow detection
// paints 10% of the stack, capped at 1 KiB since painting is slow over a
// debug link and more than that is rarely needed as a warning margin.
func Size(stackAvailable uint32, measureStack bool) uint32 {
	if measureStack {
		return stackAvailable
	}
	return RoundUp(min(MaxDetectionSize, stackAvailable/10), Alignment)
}
