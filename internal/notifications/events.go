package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/observability"
)

const (
	EventPostCreated    = "post_created"
	EventCommentCreated = "comment_created"
	EventFollowed       = "followed"
)

// Event is the JSON envelope written to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher routes events through Redis when it is available and straight to the local
// hub otherwise, so each event reaches a client once.
type Publisher struct {
	hub      *FeedHub
	notifier *Notifier
}

func NewPublisher(hub *FeedHub, notifier *Notifier) *Publisher {
	return &Publisher{hub: hub, notifier: notifier}
}

// ToUsers sends evt to each listed user. Zero ids are skipped.
func (p *Publisher) ToUsers(ctx context.Context, evt Event, userIDs ...uint) {
	if p == nil || len(userIDs) == 0 {
		return
	}
	message, ok := encode(evt)
	if !ok {
		return
	}
	for _, id := range userIDs {
		if id == 0 {
			continue
		}
		if p.notifier.Enabled() {
			if err := p.notifier.PublishUser(ctx, id, message); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to publish user event",
					slog.String("event", evt.Type), slog.Any("target_user", id), slog.String("error", err.Error()))
			}
		} else if p.hub != nil {
			p.hub.Deliver(id, message)
		}
	}
	observability.EventsPublished.WithLabelValues(evt.Type).Inc()
}

// Broadcast sends evt to every connected client.
func (p *Publisher) Broadcast(ctx context.Context, evt Event) {
	if p == nil {
		return
	}
	message, ok := encode(evt)
	if !ok {
		return
	}
	if p.notifier.Enabled() {
		if err := p.notifier.PublishBroadcast(ctx, message); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
				slog.String("event", evt.Type), slog.String("error", err.Error()))
		}
	} else if p.hub != nil {
		p.hub.DeliverAll(message)
	}
	observability.EventsPublished.WithLabelValues(evt.Type).Inc()
}

func encode(evt Event) (string, bool) {
	b, err := json.Marshal(evt)
	if err != nil {
		middleware.Logger.Error("failed to marshal event", slog.String("event", evt.Type), slog.String("error", err.Error()))
		return "", false
	}
	return string(b), true
}

// UserSummary is the public part of a user embedded in event payloads.
func UserSummary(u *models.User) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{"id": u.ID, "username": u.Username}
}

// PostCreatedEvent announces a new post.
func PostCreatedEvent(post *models.Post) Event {
	payload := map[string]any{
		"post_id": post.ID,
		"text":    post.Preview(),
		"author":  UserSummary(&post.Author),
	}
	if post.Group != nil {
		payload["group"] = post.Group.Slug
	}
	return Event{Type: EventPostCreated, Payload: payload}
}

// CommentCreatedEvent tells a post author about a new comment.
func CommentCreatedEvent(comment *models.Comment) Event {
	return Event{Type: EventCommentCreated, Payload: map[string]any{
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
		"text":       comment.Preview(),
		"author":     UserSummary(&comment.Author),
	}}
}

// FollowedEvent tells an author they gained a follower.
func FollowedEvent(follower *models.User) Event {
	return Event{Type: EventFollowed, Payload: map[string]any{
		"follower": UserSummary(follower),
	}}
}
