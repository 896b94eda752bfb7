package mockphone

import (
	"math/rand/v2"
	"strconv"
)

// Prefixes are the mobile network prefixes values are drawn from.
var Prefixes = [...]string{
	"139", "138", "137", "136", "135", "134", "159", "158", "157", "150", "151", "152", "188",
	"187", "182", "183", "184", "178", "130", "131", "132", "156", "155", "186", "185", "176",
	"133", "153", "189", "180", "181", "177", "199",
}

// The suffix is drawn from [suffixMin, suffixMax) so it always has SuffixDigits digits.
const (
	SuffixDigits = 8
	suffixMin    = 10_000_000
	suffixMax    = 100_000_000
)

// Generate returns one phone number: a random prefix followed by
// a random SuffixDigits-digit number. It only reads from r,
// so a seeded r gives a reproducible sequence.
func Generate(r *rand.Rand) string {
	prefix := Prefixes[r.IntN(len(Prefixes))]
	buf := make([]byte, 0, len(prefix)+SuffixDigits)
	buf = append(buf, prefix...)
	buf = strconv.AppendInt(buf, suffixMin+r.Int64N(suffixMax-suffixMin), 10)
	return string(buf)
}

// MaxLen is the length of the longest value Generate can return.
func MaxLen() int {
	longest := 0
	for _, p := range Prefixes {
		longest = max(longest, len(p))
	}
	return longest + SuffixDigits
}
