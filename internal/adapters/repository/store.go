// Package repository persists the followed-team set.
package repository

import (
	"context"
	"sort"
)

// FollowStore loads and saves followed team numbers.
type FollowStore interface {
	Load(ctx context.Context) ([]int, error)
	Save(ctx context.Context, teams []int) error
}

func normalise(teams []int) []int {
	seen := make(map[int]struct{}, len(teams))
	out := make([]int, 0, len(teams))
	for _, t := range teams {
		if t <= 0 {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}
