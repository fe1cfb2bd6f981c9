package board

import (
	"context"

	"taskboard-api/domain"
)

// validateVersion is the conflict detector: it reads the current task and
// compares the caller's version token against the stored one.
//
// A zero clientVersion means the caller opted out of conflict checking
// (status-only moves do this). A token older than the stored version yields
// a ConflictError carrying the authoritative task. Equal or newer tokens
// pass. The check is read-only and whole-record: edits to disjoint fields
// still conflict.
//
// Note the check does not span the subsequent write. Two updates that both
// read the same version can both pass and both commit; this optimistic,
// last-write-wins behavior is deliberate (see DESIGN.md).
func (p *Pipeline) validateVersion(ctx context.Context, id string, clientVersion int64) (domain.Task, error) {
	current, err := p.store.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if clientVersion != 0 && clientVersion < current.Version {
		return domain.Task{}, &domain.ConflictError{ServerTask: current}
	}
	return current, nil
}
