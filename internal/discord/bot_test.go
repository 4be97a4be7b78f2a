package discord

import (
	"context"
	"testing"

	"example.com/backstage/services/gamebot/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Create(ctx context.Context, req models.CreateRequest) (models.Event, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.Event), args.Error(1)
}

func (m *MockEngine) Join(ctx context.Context, eventID, userID string) (models.SignupResult, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(models.SignupResult), args.Error(1)
}

func (m *MockEngine) Leave(ctx context.Context, eventID, userID string) (models.SignupResult, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(models.SignupResult), args.Error(1)
}

func (m *MockEngine) Cancel(ctx context.Context, eventID string) (models.Event, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(models.Event), args.Error(1)
}

func (m *MockEngine) CancelByUser(ctx context.Context, eventID, userID string) (models.Event, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(models.Event), args.Error(1)
}

func (m *MockEngine) List(ctx context.Context, guildID string) ([]models.Event, error) {
	args := m.Called(ctx, guildID)
	events, _ := args.Get(0).([]models.Event)
	return events, args.Error(1)
}

func newTestBot() (*Bot, *MockEngine, *MockSession) {
	engine := new(MockEngine)
	client, session := newTestClient()
	return NewBot(context.Background(), engine, client, nil, "game ", "🙋"), engine, session
}

func message(content string) Message {
	return Message{
		ID:        "cmd-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		AuthorID:  "u1",
		Content:   content,
	}
}

func replyWith(text string) interface{} {
	return mock.MatchedBy(func(m *discordgo.MessageSend) bool { return m.Content == "🤡 "+text })
}

func TestCreateCommand(t *testing.T) {
	bot, engine, session := newTestBot()

	m := message("game create --name Raid --time tomorrow at 5pm --maxplayers 4")
	m.MentionRoles = []string{"role-a"}

	engine.On("Create", mock.Anything, models.CreateRequest{
		Args:      map[string]string{"name": "Raid", "time": "tomorrow at 5pm", "maxplayers": "4"},
		CreatedBy: "u1",
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		Mentions:  []string{"role-a"},
	}).Return(models.Event{ID: "msg-1"}, nil).Once()
	session.On("ChannelMessageDelete", "chan-1", "cmd-1").Return(nil).Once()

	bot.HandleMessage(m)

	engine.AssertExpectations(t)
	session.AssertExpectations(t)
}

func TestCreateCommandValidationReply(t *testing.T) {
	bot, engine, session := newTestBot()

	engine.On("Create", mock.Anything, mock.Anything).
		Return(models.Event{}, models.NewValidationError(models.MissingName)).Once()
	session.On("ChannelMessageSendComplex", "chan-1", replyWith("Missing argument: --name")).
		Return(&discordgo.Message{}, nil).Once()

	bot.HandleMessage(message("game create --time tomorrow"))

	session.AssertExpectations(t)
	session.AssertNotCalled(t, "ChannelMessageDelete", mock.Anything, mock.Anything)
}

func TestIgnoredMessages(t *testing.T) {
	bot, engine, session := newTestBot()

	fromBot := message("game create --name X --time y")
	fromBot.Bot = true
	direct := message("game list")
	direct.GuildID = ""

	bot.HandleMessage(message("hello there"))
	bot.HandleMessage(fromBot)
	bot.HandleMessage(direct)

	engine.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	engine.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	session.AssertNotCalled(t, "ChannelMessageSendComplex", mock.Anything, mock.Anything)
}

func TestUnknownCommand(t *testing.T) {
	bot, _, session := newTestBot()
	session.On("ChannelMessageSendComplex", "chan-1", replyWith("That's not a valid command!")).
		Return(&discordgo.Message{}, nil).Once()

	bot.HandleMessage(message("game dance"))
	session.AssertExpectations(t)
}

func TestCancelCommand(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		reply string
	}{
		{name: "not creator", err: errors.Wrap(models.ErrNotCreator, "cancel"), reply: "Only the creator of an event can cancel it."},
		{name: "unknown event", err: models.ErrEventNotFound, reply: "There is no scheduled event with that id."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, engine, session := newTestBot()
			engine.On("CancelByUser", mock.Anything, "msg-1", "u1").Return(models.Event{}, tt.err).Once()
			session.On("ChannelMessageSendComplex", "chan-1", replyWith(tt.reply)).Return(&discordgo.Message{}, nil).Once()

			bot.HandleMessage(message("game cancel --id msg-1"))

			engine.AssertExpectations(t)
			session.AssertExpectations(t)
		})
	}

	t.Run("creator", func(t *testing.T) {
		bot, engine, session := newTestBot()
		engine.On("CancelByUser", mock.Anything, "msg-1", "u1").Return(models.Event{ID: "msg-1"}, nil).Once()
		session.On("ChannelMessageDelete", "chan-1", "cmd-1").Return(nil).Once()

		bot.HandleMessage(message("game cancel --id msg-1"))
		session.AssertExpectations(t)
	})

	t.Run("missing id", func(t *testing.T) {
		bot, engine, session := newTestBot()
		session.On("ChannelMessageSendComplex", "chan-1", replyWith("Missing argument: --id")).Return(&discordgo.Message{}, nil).Once()

		bot.HandleMessage(message("game cancel"))
		engine.AssertNotCalled(t, "CancelByUser", mock.Anything, mock.Anything, mock.Anything)
		session.AssertExpectations(t)
	})
}

func TestListCommand(t *testing.T) {
	bot, engine, session := newTestBot()
	engine.On("List", mock.Anything, "guild-1").Return([]models.Event{{ID: "msg-1", Name: "Raid"}}, nil).Once()
	session.On("ChannelMessageSendComplex", "chan-1", mock.MatchedBy(func(m *discordgo.MessageSend) bool {
		return len(m.Embeds) == 1 && m.Embeds[0].Fields[0].Name == "Raid"
	})).Return(&discordgo.Message{}, nil).Once()

	bot.HandleMessage(message("game list"))
	session.AssertExpectations(t)
}

func TestReactions(t *testing.T) {
	bot, engine, _ := newTestBot()
	engine.On("Join", mock.Anything, "msg-1", "u1").Return(models.SignupResult{Outcome: models.Joined}, nil).Once()
	engine.On("Leave", mock.Anything, "msg-1", "u1").Return(models.SignupResult{Outcome: models.Left}, nil).Once()

	r := Reaction{MessageID: "msg-1", GuildID: "guild-1", UserID: "u1", Emoji: "🙋"}
	bot.HandleReaction(r, true)
	bot.HandleReaction(r, false)

	other := r
	other.Emoji = "👍"
	bot.HandleReaction(other, true)

	self := r
	self.Bot = true
	bot.HandleReaction(self, true)

	engine.AssertExpectations(t)
	engine.AssertNumberOfCalls(t, "Join", 1)
}

func TestDeleteCancelsEvent(t *testing.T) {
	bot, engine, _ := newTestBot()
	engine.On("Cancel", mock.Anything, "msg-1").Return(models.Event{ID: "msg-1"}, nil).Once()
	engine.On("Cancel", mock.Anything, "other").Return(models.Event{}, models.ErrEventNotFound).Once()

	bot.HandleDelete("msg-1")
	bot.HandleDelete("other")

	engine.AssertExpectations(t)
}
