package services

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
)

type busEnvelope struct {
	Kind  string                `json:"kind"`
	Group *models.Group         `json:"group"`
	Match *models.Match         `json:"match,omitempty"`
	Item  *models.CandidateItem `json:"item,omitempty"`
}

// LocalNotifier delivers events to this instance's connections
type LocalNotifier interface {
	MatchNotifier
	QueueNotifier
}

// MatchBus fans group events out to every instance over Redis pub/sub
type MatchBus struct {
	rdb     *goredis.Client
	channel string
	local   LocalNotifier
}

// NewMatchBus creates a bus publishing on channel and delivering to local
func NewMatchBus(rdb *goredis.Client, channel string, local LocalNotifier) *MatchBus {
	return &MatchBus{rdb: rdb, channel: channel, local: local}
}

// NotifyMatch publishes the match; every subscribed instance delivers it locally
func (b *MatchBus) NotifyMatch(ctx context.Context, group *models.Group, match models.Match) {
	b.publish(ctx, busEnvelope{Kind: EventMatch, Group: group, Match: &match})
}

// NotifyQueueUpdated publishes a queue change
func (b *MatchBus) NotifyQueueUpdated(ctx context.Context, group *models.Group, item models.CandidateItem) {
	b.publish(ctx, busEnvelope{Kind: EventQueueUpdated, Group: group, Item: &item})
}

func (b *MatchBus) publish(ctx context.Context, env busEnvelope) {
	raw, err := json.Marshal(env)
	if err == nil {
		err = b.rdb.Publish(ctx, b.channel, raw).Err()
	}
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("redis", "error").Inc()
		log.Error().Err(err).Str("group_id", env.Group.ID).Msg("Failed to publish group event, delivering locally")
		b.deliver(ctx, env)
		return
	}
	metrics.NotificationsSent.WithLabelValues("redis", "ok").Inc()
}

// StartForwarder subscribes to the channel and forwards events until ctx is done
func (b *MatchBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env busEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil || env.Group == nil {
					log.Warn().Err(err).Msg("Bad group event payload")
					continue
				}
				b.deliver(ctx, env)
			}
		}
	}()

	return nil
}

func (b *MatchBus) deliver(ctx context.Context, env busEnvelope) {
	switch env.Kind {
	case EventMatch:
		if env.Match != nil {
			b.local.NotifyMatch(ctx, env.Group, *env.Match)
		}
	case EventQueueUpdated:
		if env.Item != nil {
			b.local.NotifyQueueUpdated(ctx, env.Group, *env.Item)
		}
	}
}
