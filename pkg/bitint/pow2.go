// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used to size analysis
// windows. All functions are allocation free.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= n, and 1 for n <= 1.
// Subtracting one first keeps exact powers of 2 unchanged.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the exponent of a power of 2, or -1 when n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
