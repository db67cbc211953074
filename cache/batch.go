package cache

// Batch deduplicates keys within one pipeline run, so two items of the same
// fetch that map to the same dedup key yield a single delivery. It is not
// safe for concurrent use; the pipeline's single-flight lock serializes it.
type Batch struct {
	keys map[string]struct{}
}

func NewBatch() *Batch {
	return &Batch{keys: make(map[string]struct{})}
}

// Observe records the key and reports whether it was seen before in this
// batch.
func (b *Batch) Observe(key string) bool {
	if _, ok := b.keys[key]; ok {
		return true
	}
	b.keys[key] = struct{}{}
	return false
}
