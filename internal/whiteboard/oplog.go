package whiteboard

import (
	"sort"

	"peer-service/internal/models"
)

// Merge combines an incoming operation batch with the stored log: concatenate,
// drop operations whose identity is already present, then stable-sort the
// result by logical timestamp ascending. Ties keep arrival order. The merge is
// order-insensitive at the set level, so a batch resubmitted after a client
// timeout is absorbed without duplicating marks.
func Merge(existing, incoming []models.Operation) []models.Operation {
	merged := make([]models.Operation, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	for _, op := range existing {
		key := op.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, op)
	}
	for _, op := range incoming {
		key := op.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, op)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
