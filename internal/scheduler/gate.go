package scheduler

import (
	"context"

	"github.com/mshv/pillbot/internal/store"
)

// Gate decides, per user and local calendar date, whether a reminder should
// actually be delivered. Side-effect free.
type Gate interface {
	ShouldDeliver(ctx context.Context, userID int64, localDate string) (bool, error)
}

// AckGate suppresses delivery once the user acknowledged taking the pill on
// the given local date.
type AckGate struct {
	repo store.Repo
}

func NewAckGate(repo store.Repo) *AckGate {
	return &AckGate{repo: repo}
}

func (g *AckGate) ShouldDeliver(ctx context.Context, userID int64, localDate string) (bool, error) {
	taken, err := g.repo.PillTakenOn(ctx, userID, localDate)
	if err != nil {
		return false, err
	}
	return !taken, nil
}
