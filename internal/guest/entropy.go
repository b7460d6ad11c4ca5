package guest

import "crypto/rand"

// Entropy is a capability interface over randomness for the same reason
// Clock is: guest code never reads OS entropy directly, only a recorded
// transaction result.
type Entropy interface {
	Read(p []byte) (int, error)
}

type SystemEntropy struct{}

func (SystemEntropy) Read(p []byte) (int, error) { return rand.Read(p) }
