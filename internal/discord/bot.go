package discord

import (
	"context"
	"strings"

	"example.com/backstage/services/gamebot/internal/command"
	"example.com/backstage/services/gamebot/internal/models"
	"example.com/backstage/services/gamebot/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Chat commands
const (
	CommandCreate = "create"
	CommandCancel = "cancel"
	CommandList   = "list"
)

// Engine is the lifecycle engine as seen by the platform handlers
type Engine interface {
	Create(ctx context.Context, req models.CreateRequest) (models.Event, error)
	Join(ctx context.Context, eventID, userID string) (models.SignupResult, error)
	Leave(ctx context.Context, eventID, userID string) (models.SignupResult, error)
	Cancel(ctx context.Context, eventID string) (models.Event, error)
	CancelByUser(ctx context.Context, eventID, userID string) (models.Event, error)
	List(ctx context.Context, guildID string) ([]models.Event, error)
}

// Message is an inbound chat message with mentions already resolved
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Bot       bool
	Content   string
	// MentionRoles are the ids of roles pinged in the message
	MentionRoles []string
}

// Reaction is an inbound reaction add or remove
type Reaction struct {
	MessageID string
	GuildID   string
	UserID    string
	Emoji     string
	Bot       bool
}

// Bot turns Discord gateway events into engine intents
type Bot struct {
	engine Engine
	client *Client
	tracer tracing.Tracer
	prefix string
	emoji  string
	ctx    context.Context
}

// NewBot creates the handler set. ctx bounds every intent started by a gateway event.
func NewBot(ctx context.Context, engine Engine, client *Client, tracer tracing.Tracer, prefix, emoji string) *Bot {
	if tracer == nil {
		tracer = tracing.NoopTracer()
	}
	return &Bot{
		engine: engine,
		client: client,
		tracer: tracer,
		prefix: prefix,
		emoji:  emoji,
		ctx:    ctx,
	}
}

// Register adds the gateway handlers and intents to the session
func (b *Bot) Register(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onReactionAdd)
	s.AddHandler(b.onReactionRemove)
	s.AddHandler(b.onMessageDelete)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Connected to Discord")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	content, err := m.ContentWithMoreMentionsReplaced(s)
	if err != nil {
		content = m.ContentWithMentionsReplaced()
	}
	b.HandleMessage(Message{
		ID:           m.ID,
		ChannelID:    m.ChannelID,
		GuildID:      m.GuildID,
		AuthorID:     m.Author.ID,
		Bot:          m.Author.Bot,
		Content:      content,
		MentionRoles: m.MentionRoles,
	})
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	bot := isSelf(s, r.UserID) || (r.Member != nil && r.Member.User != nil && r.Member.User.Bot)
	b.HandleReaction(Reaction{
		MessageID: r.MessageID,
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
		Bot:       bot,
	}, true)
}

func (b *Bot) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	b.HandleReaction(Reaction{
		MessageID: r.MessageID,
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
		Bot:       isSelf(s, r.UserID),
	}, false)
}

func (b *Bot) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	b.HandleDelete(m.ID)
}

// HandleMessage executes a prefixed chat command
func (b *Bot) HandleMessage(m Message) {
	if m.Bot || m.GuildID == "" || !strings.HasPrefix(m.Content, b.prefix) {
		return
	}

	cmd := command.Parse(strings.TrimPrefix(m.Content, b.prefix))

	txn := b.tracer.StartTransaction("discord.command." + cmd.Name)
	defer b.tracer.EndTransaction(txn)
	b.tracer.AddAttribute(txn, "guild_id", m.GuildID)
	ctx := newrelic.NewContext(b.ctx, txn)

	log.Debug().
		Str("command", cmd.Name).
		Str("user_id", m.AuthorID).
		Interface("args", cmd.Args).
		Msg("Processing command")

	var err error
	switch cmd.Name {
	case CommandCreate:
		err = b.create(ctx, m, cmd)
	case CommandCancel:
		err = b.cancel(ctx, m, cmd)
	case CommandList:
		err = b.list(ctx, m)
	default:
		err = b.reply(ctx, m.ChannelID, "That's not a valid command!")
	}

	if err != nil {
		b.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("command", cmd.Name).Str("channel_id", m.ChannelID).Msg("Command failed")
	}
}

func (b *Bot) create(ctx context.Context, m Message, cmd command.Command) error {
	ev, err := b.engine.Create(ctx, models.CreateRequest{
		Args:      cmd.Args,
		CreatedBy: m.AuthorID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Mentions:  m.MentionRoles,
	})

	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return b.reply(ctx, m.ChannelID, vErr.Error())
	}
	if err != nil {
		if replyErr := b.reply(ctx, m.ChannelID, "Something went wrong creating the event."); replyErr != nil {
			log.Warn().Err(replyErr).Msg("Failed to report create failure")
		}
		return err
	}

	log.Info().Str("event_id", ev.ID).Str("user_id", m.AuthorID).Msg("Event created from command")
	return b.client.DeleteMessage(ctx, m.ChannelID, m.ID)
}

func (b *Bot) cancel(ctx context.Context, m Message, cmd command.Command) error {
	eventID := cmd.Args[command.ArgID]
	if eventID == "" {
		return b.reply(ctx, m.ChannelID, "Missing argument: --id")
	}

	_, err := b.engine.CancelByUser(ctx, eventID, m.AuthorID)
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return b.reply(ctx, m.ChannelID, "There is no scheduled event with that id.")
	case errors.Is(err, models.ErrNotCreator):
		return b.reply(ctx, m.ChannelID, "Only the creator of an event can cancel it.")
	case err != nil:
		return err
	}
	return b.client.DeleteMessage(ctx, m.ChannelID, m.ID)
}

func (b *Bot) list(ctx context.Context, m Message) error {
	events, err := b.engine.List(ctx, m.GuildID)
	if err != nil {
		return err
	}
	return b.client.SendEventList(ctx, m.ChannelID, events)
}

func (b *Bot) reply(ctx context.Context, channelID, text string) error {
	return b.client.Post(ctx, channelID, models.Notice{Kind: models.NoticeValidationError, Text: text})
}

// HandleReaction joins or leaves the event announced by the reacted message
func (b *Bot) HandleReaction(r Reaction, added bool) {
	if r.Bot || r.GuildID == "" || r.Emoji != b.emoji {
		return
	}

	name := "discord.reaction.remove"
	if added {
		name = "discord.reaction.add"
	}
	txn := b.tracer.StartTransaction(name)
	defer b.tracer.EndTransaction(txn)
	b.tracer.AddAttribute(txn, "event_id", r.MessageID)
	ctx := newrelic.NewContext(b.ctx, txn)

	var err error
	if added {
		_, err = b.engine.Join(ctx, r.MessageID, r.UserID)
	} else {
		_, err = b.engine.Leave(ctx, r.MessageID, r.UserID)
	}
	if err != nil {
		b.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("event_id", r.MessageID).Str("user_id", r.UserID).Msg("Failed to process reaction")
	}
}

// HandleDelete cancels the event announced by a deleted message
func (b *Bot) HandleDelete(messageID string) {
	txn := b.tracer.StartTransaction("discord.message.delete")
	defer b.tracer.EndTransaction(txn)
	ctx := newrelic.NewContext(b.ctx, txn)

	_, err := b.engine.Cancel(ctx, messageID)
	if err == nil || errors.Is(err, models.ErrEventNotFound) {
		return
	}
	b.tracer.RecordError(txn, err)
	log.Error().Err(err).Str("event_id", messageID).Msg("Failed to cancel event for deleted message")
}

func isSelf(s *discordgo.Session, userID string) bool {
	return s != nil && s.State != nil && s.State.User != nil && s.State.User.ID == userID
}
