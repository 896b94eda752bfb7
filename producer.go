package mockphone

import (
	"context"
	"math/rand/v2"
)

// cancelCheckInterval is how many values a producer generates
// between checks for cancellation.
const cancelCheckInterval = 1 << 16

// Produce generates quota values from r into one Batch and sends it to f.
// An empty quota still sends an empty Batch, so the Funnel always sees
// one batch per producer.
//
// If ctx is cancelled first, Produce returns its error without sending.
func Produce(ctx context.Context, r *rand.Rand, quota int64, f *Funnel) error {
	batch := make(Batch, 0, quota)
	for i := int64(0); i < quota; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		batch = append(batch, Generate(r))
	}
	f.Send(batch)
	return nil
}
