package whiteboard

import "peer-service/internal/models"

// Surface is the local drawable a Replayer renders onto.
type Surface interface {
	DrawStroke(op models.Operation)
	DrawText(op models.Operation)
	Erase(targetIDs []string)
	Clear()
}

// Replayer applies a session's operation log to a local surface without
// double-rendering across repeated sync polls and without re-rendering the
// local author's own operations, which were already drawn optimistically.
type Replayer struct {
	localUserID string
	applied     map[string]struct{}
}

// NewReplayer creates a Replayer for the given local user.
func NewReplayer(localUserID string) *Replayer {
	return &Replayer{
		localUserID: localUserID,
		applied:     make(map[string]struct{}),
	}
}

// Apply renders the operations it has not yet seen, in the order given (the
// merge engine already established timestamp order). It returns the number of
// operations rendered.
//
// A clear wipes the surface and resets the applied set without recording the
// clear itself, so replaying the full log on the next poll redoes the clear
// and everything after it and converges to the same picture even when
// operations were reordered across poll boundaries.
func (r *Replayer) Apply(surface Surface, ops []models.Operation) int {
	rendered := 0
	for _, op := range ops {
		if op.Type == models.OpClear {
			surface.Clear()
			r.applied = make(map[string]struct{})
			rendered++
			continue
		}

		key := op.Key()
		if _, ok := r.applied[key]; ok {
			continue
		}
		r.applied[key] = struct{}{}

		if op.UserID == r.localUserID {
			continue
		}

		switch op.Type {
		case models.OpDraw:
			surface.DrawStroke(op)
		case models.OpText:
			surface.DrawText(op)
		case models.OpErase:
			surface.Erase(op.Targets)
		}
		rendered++
	}
	return rendered
}

// Seen marks an operation as already rendered, used for operations the local
// client drew optimistically before syncing.
func (r *Replayer) Seen(op models.Operation) {
	r.applied[op.Key()] = struct{}{}
}
