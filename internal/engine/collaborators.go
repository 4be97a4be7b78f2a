package engine

import (
	"context"

	"example.com/backstage/services/gamebot/internal/models"
)

// Notifier delivers announcements and notices on the chat platform
type Notifier interface {
	// Announce posts the signup message for a new event and returns its id
	Announce(ctx context.Context, event models.Event) (string, error)
	Post(ctx context.Context, channelID string, notice models.Notice) error
	DirectMessage(ctx context.Context, userID string, notice models.Notice) error
	// RevertReaction undoes the signup reaction of a rejected user
	RevertReaction(ctx context.Context, event models.Event, userID string) error
}

// RoleManager manages the mentionable role mirroring an event's roster
type RoleManager interface {
	CreateRole(ctx context.Context, guildID, name string) (string, error)
	Grant(ctx context.Context, guildID, roleID, userID string) error
	Revoke(ctx context.Context, guildID, roleID, userID string) error
	DeleteRole(ctx context.Context, guildID, roleID string) error
}

// Publisher receives lifecycle records of created and resolved events
type Publisher interface {
	Publish(ctx context.Context, record models.Lifecycle) error
}
