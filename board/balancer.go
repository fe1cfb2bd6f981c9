package board

import (
	"context"

	"taskboard-api/domain"
)

// pickAssignee selects the user with the fewest open (not Done) tasks.
// Ties go to the user listed first by the directory, so the result is
// stable for a directory with stable enumeration order.
//
// The workload counts are unsynchronized snapshots: two concurrent smart
// assigns can both pick the same least-busy user. Accepted, same as the
// update race.
func (p *Pipeline) pickAssignee(ctx context.Context) (domain.User, error) {
	users, err := p.users.ListUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, domain.ErrNoUsersAvailable
	}

	best := users[0]
	bestCount, err := p.users.CountOpenTasks(ctx, best.ID)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users[1:] {
		count, err := p.users.CountOpenTasks(ctx, u.ID)
		if err != nil {
			return domain.User{}, err
		}
		if count < bestCount {
			best = u
			bestCount = count
		}
	}
	return best, nil
}
