package services

import (
	"context"

	"watch-match-backend/internal/models"
)

// Notifiers fans a new match out to several notifiers in order
type Notifiers []MatchNotifier

// NotifyMatch implements MatchNotifier
func (n Notifiers) NotifyMatch(ctx context.Context, group *models.Group, match models.Match) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.NotifyMatch(ctx, group, match)
		}
	}
}
