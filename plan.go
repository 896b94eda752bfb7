package mockphone

import "fmt"

// Plan splits total values across workers.
// Every worker gets total/workers; the first also gets the remainder,
// so the quotas always add up to total.
func Plan(total int64, workers int) []int64 {
	if workers < 1 {
		panic(fmt.Sprintf("plan: %d workers", workers))
	}
	if total < 0 {
		panic(fmt.Sprintf("plan: negative total %d", total))
	}

	base := total / int64(workers)
	quotas := make([]int64, workers)
	for i := range quotas {
		quotas[i] = base
	}
	quotas[0] += total % int64(workers)
	return quotas
}
