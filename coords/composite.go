package coords

// NextLargerEven returns the smallest even number >= n whose only prime
// factors are 2, 3 and 5. Such sizes keep the FFTs fast.
func NextLargerEven(n int) int {
	if n <= 2 {
		return 2
	}
	if n%2 != 0 {
		n++
	}
	for ; ; n += 2 {
		if isComposite235(n) {
			return n
		}
	}
}

func isComposite235(n int) bool {
	for _, p := range []int{2, 3, 5} {
		for n%p == 0 {
			n /= p
		}
	}
	return n == 1
}

// PaddedSize returns the grid size used for an image axis of n pixels with
// the given padding factor. A factor <= 1 leaves the size unchanged.
func PaddedSize(n int, padding float64) int {
	if padding <= 1 {
		return n
	}
	return NextLargerEven(int(padding*float64(n) - 0.5))
}
