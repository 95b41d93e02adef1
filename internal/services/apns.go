package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"watch-match-backend/internal/config"
	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

// Pusher delivers a single APNs notification
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Presence reports whether a user has a live connection
type Presence interface {
	IsOnline(userID string) bool
}

// NewAPNsClient builds a token-authenticated APNs client
func NewAPNsClient(cfg config.APNsConfig) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

// APNsNotifier pushes match alerts to members without a live connection
type APNsNotifier struct {
	client   Pusher
	topic    string
	userRepo *repository.UserRepository
	presence Presence
}

// NewAPNsNotifier creates a push notifier. presence may be nil, in which case every member is pushed.
func NewAPNsNotifier(client Pusher, topic string, userRepo *repository.UserRepository, presence Presence) *APNsNotifier {
	return &APNsNotifier{
		client:   client,
		topic:    topic,
		userRepo: userRepo,
		presence: presence,
	}
}

// NotifyMatch pushes the match to offline members that registered a device token
func (n *APNsNotifier) NotifyMatch(ctx context.Context, group *models.Group, match models.Match) {
	var offline []string
	for _, id := range group.Members {
		if n.presence == nil || !n.presence.IsOnline(id) {
			offline = append(offline, id)
		}
	}
	if len(offline) == 0 {
		return
	}

	users, err := n.userRepo.GetMany(ctx, offline)
	if err != nil {
		log.Error().Err(err).Str("group_id", group.ID).Msg("Failed to load members for push")
		return
	}

	body := "Everyone in " + group.Name + " wants to watch this"
	if match.Title != "" {
		body = "Everyone in " + group.Name + " wants to watch " + match.Title
	}

	for _, user := range users {
		if user.PushToken == nil {
			continue
		}
		notification := &apns2.Notification{
			DeviceToken: *user.PushToken,
			Topic:       n.topic,
			PushType:    apns2.PushTypeAlert,
			Payload: payload.NewPayload().
				AlertTitle("It's a match!").
				AlertBody(body).
				Sound("default").
				Custom("group_id", group.ID).
				Custom("item_id", match.Item.ID).
				Custom("item_type", string(match.Item.Kind)),
		}

		res, err := n.client.PushWithContext(ctx, notification)
		if err != nil {
			metrics.NotificationsSent.WithLabelValues("apns", "error").Inc()
			log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to push match")
			continue
		}
		if !res.Sent() {
			metrics.NotificationsSent.WithLabelValues("apns", "rejected").Inc()
			log.Warn().
				Str("user_id", user.ID).
				Int("status", res.StatusCode).
				Str("reason", res.Reason).
				Msg("APNs rejected match notification")
			continue
		}
		metrics.NotificationsSent.WithLabelValues("apns", "ok").Inc()
	}
}
