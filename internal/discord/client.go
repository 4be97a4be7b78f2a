package discord

import (
	"context"
	"net/http"

	"example.com/backstage/services/gamebot/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is the subset of *discordgo.Session the bot talks to
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleDelete(guildID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Client delivers announcements, notices and role changes through a Discord session.
// It implements the engine's Notifier and RoleManager.
type Client struct {
	session  Session
	renderer Renderer
}

// NewClient creates a client
func NewClient(session Session, renderer Renderer) *Client {
	return &Client{session: session, renderer: renderer}
}

// Announce posts the signup message and adds the signup reaction to it
func (c *Client) Announce(ctx context.Context, event models.Event) (string, error) {
	msg, err := c.session.ChannelMessageSendComplex(event.ChannelID, c.renderer.Announcement(event), discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(err, "failed to post announcement in channel %s", event.ChannelID)
	}

	if err := c.session.MessageReactionAdd(event.ChannelID, msg.ID, c.renderer.Emoji, discordgo.WithContext(ctx)); err != nil {
		// users can still add the reaction themselves
		log.Warn().Err(err).Str("event_id", msg.ID).Msg("Failed to add signup reaction")
	}
	return msg.ID, nil
}

// Post sends a notice to a channel
func (c *Client) Post(ctx context.Context, channelID string, notice models.Notice) error {
	return c.send(ctx, channelID, c.renderer.Notice(notice))
}

// DirectMessage sends a notice to a user's DM channel
func (c *Client) DirectMessage(ctx context.Context, userID string, notice models.Notice) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to open DM channel with %s", userID)
	}
	return c.send(ctx, ch.ID, c.renderer.Direct(notice))
}

// RevertReaction removes userID's signup reaction from the announcement
func (c *Client) RevertReaction(ctx context.Context, event models.Event, userID string) error {
	err := c.session.MessageReactionRemove(event.ChannelID, event.ID, c.renderer.Emoji, userID, discordgo.WithContext(ctx))
	return errors.Wrapf(err, "failed to remove reaction of %s", userID)
}

// SendEventList posts the live events of a guild
func (c *Client) SendEventList(ctx context.Context, channelID string, events []models.Event) error {
	return c.send(ctx, channelID, c.renderer.EventList(events))
}

// DeleteMessage deletes a message; an already deleted message is not an error
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to delete message %s", messageID)
}

// CreateRole creates a mentionable role and returns its id
func (c *Client) CreateRole(ctx context.Context, guildID, name string) (string, error) {
	mentionable := true
	role, err := c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(err, "failed to create role %q", name)
	}
	return role.ID, nil
}

// Grant adds the role to a guild member
func (c *Client) Grant(ctx context.Context, guildID, roleID, userID string) error {
	err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	return errors.Wrapf(err, "failed to grant role %s to %s", roleID, userID)
}

// Revoke removes the role from a guild member
func (c *Client) Revoke(ctx context.Context, guildID, roleID, userID string) error {
	err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	return errors.Wrapf(err, "failed to revoke role %s from %s", roleID, userID)
}

// DeleteRole deletes the role; a role that is already gone is not an error
func (c *Client) DeleteRole(ctx context.Context, guildID, roleID string) error {
	err := c.session.GuildRoleDelete(guildID, roleID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to delete role %s", roleID)
}

func (c *Client) send(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return errors.Wrapf(err, "failed to send message to channel %s", channelID)
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
