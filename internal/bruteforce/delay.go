// Package bruteforce deliberately burns CPU during token confirmation so that
// online guessing of short confirmation codes stays expensive.
package bruteforce

import "golang.org/x/crypto/bcrypt"

// Delayer performs the anti-brute-force work for one candidate token.
type Delayer func(candidate string)

// Bcrypt hashes the candidate at cost and throws the result away. The hash is
// never stored or compared; only the work factor matters.
func Bcrypt(cost int) Delayer {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return func(candidate string) {
		// bcrypt caps input at 72 bytes; errors are irrelevant here.
		if len(candidate) > 72 {
			candidate = candidate[:72]
		}
		_, _ = bcrypt.GenerateFromPassword([]byte(candidate), cost)
	}
}

// None skips the delay. For tests only.
func None() Delayer {
	return func(string) {}
}
