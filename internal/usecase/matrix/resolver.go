package matrix

import (
	"context"
	"fmt"

	"referral-service/internal/repository"
)

// MaxDepth is the fixed height of the payout matrix.
const MaxDepth = 5

// Resolver walks sponsor chains. Read-only; no side effects.
type Resolver struct {
	users repository.UserRepository
}

func NewResolver(users repository.UserRepository) *Resolver {
	return &Resolver{users: users}
}

// ResolveUpline returns the ancestor chain of startUserID, nearest sponsor
// first, at most maxDepth entries. A user with no sponsor ends the walk.
// Sponsor assignment is acyclic by construction, but a visited set guards
// against a misconfigured chain returning repeated ancestors.
func (r *Resolver) ResolveUpline(ctx context.Context, startUserID int64, maxDepth int) ([]int64, error) {
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}

	upline := make([]int64, 0, maxDepth)
	visited := map[int64]bool{startUserID: true}
	current := startUserID

	for len(upline) < maxDepth {
		sponsorID, err := r.users.SponsorOf(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sponsor of %d: %w", current, err)
		}
		if sponsorID == nil {
			break
		}
		if visited[*sponsorID] {
			break
		}
		visited[*sponsorID] = true
		upline = append(upline, *sponsorID)
		current = *sponsorID
	}

	return upline, nil
}
