package multicall

import "fmt"

// Chunk splits items into contiguous batches of at most maxSize elements.
// Concatenating the batches in order yields items exactly. Batches share the
// backing array of items but are capped so appends never bleed into a sibling.
func Chunk[T any](items []T, maxSize int) ([][]T, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("chunk: max size must be >= 1, got %d", maxSize)
	}
	if len(items) == 0 {
		return [][]T{}, nil
	}

	batches := make([][]T, 0, (len(items)+maxSize-1)/maxSize)
	for start := 0; start < len(items); start += maxSize {
		end := min(start+maxSize, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches, nil
}
