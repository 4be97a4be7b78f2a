package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/gamebot/internal/models"

	"github.com/bwmarrin/discordgo"
)

// Embed colours
const (
	ColorGreen  = 0x9cffc0
	ColorRed    = 0xff4f4f
	ColorYellow = 0xffff9c
	ColorPurple = 0xab9cff
)

const timeLayout = "Mon, Jan 2 at 3:04pm"

// Renderer turns events and notices into Discord messages
type Renderer struct {
	Emoji    string
	Location *time.Location
}

func (r Renderer) when(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(timeLayout)
}

// Announcement renders the signup message of a new event. Roles mentioned in the
// create command are pinged in the content.
func (r Renderer) Announcement(ev models.Event) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Name,
		Description: fmt.Sprintf("React with %s to sign up!", r.Emoji),
		Color:       ColorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Starts at", Value: r.when(ev.StartTime)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Delete this message to cancel"},
	}
	if ev.MinPlayers > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Min. players to start", Value: strconv.Itoa(ev.MinPlayers), Inline: true,
		})
	}
	if ev.MaxPlayers > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Max players", Value: strconv.Itoa(ev.MaxPlayers), Inline: true,
		})
	}
	if ev.CreatedBy != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Created by", Value: userMention(ev.CreatedBy),
		})
	}

	var content strings.Builder
	for _, roleID := range ev.Mentions {
		content.WriteString(roleMention(roleID))
	}

	msg := &discordgo.MessageSend{
		Content: content.String(),
		Embeds:  []*discordgo.MessageEmbed{embed},
	}
	if len(ev.Mentions) > 0 {
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: ev.Mentions}
	}
	return msg
}

// Notice renders a notice for a channel. Resolution notices ping the signup role.
func (r Renderer) Notice(n models.Notice) *discordgo.MessageSend {
	ev := n.Event
	switch n.Kind {
	case models.NoticeValidationError:
		return &discordgo.MessageSend{Content: "🤡 " + n.Text}
	case models.NoticeInfo:
		return &discordgo.MessageSend{Content: n.Text}
	}

	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{r.embed(n)}}
	if ev.RoleID == "" {
		return msg
	}

	switch n.Kind {
	case models.NoticeStarting:
		msg.Content = fmt.Sprintf("%s **%s** is starting!", roleMention(ev.RoleID), ev.Name)
	case models.NoticeNotEnough, models.NoticeCancelled:
		msg.Content = fmt.Sprintf("%s **%s** has been canceled!", roleMention(ev.RoleID), ev.Name)
	}
	if msg.Content != "" {
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: []string{ev.RoleID}}
	}
	return msg
}

// Direct renders a notice for a direct message: the embed alone
func (r Renderer) Direct(n models.Notice) *discordgo.MessageSend {
	msg := r.Notice(n)
	if len(msg.Embeds) > 0 {
		msg.Content = ""
		msg.AllowedMentions = nil
	}
	return msg
}

func (r Renderer) embed(n models.Notice) *discordgo.MessageEmbed {
	ev := n.Event
	switch n.Kind {
	case models.NoticeSignedUp:
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Signed up for event %s!", ev.Name),
			Description: fmt.Sprintf("We'll notify you when the event starts on %s.", r.when(ev.StartTime)),
			Color:       ColorGreen,
		}
	case models.NoticeEventFull:
		return &discordgo.MessageEmbed{
			Title:       "Could not sign up",
			Description: fmt.Sprintf("The event %s is already at a maximum of %d signups.", ev.Name, ev.MaxPlayers),
			Color:       ColorRed,
		}
	case models.NoticeUnregistered:
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Unregistered for %s!", ev.Name),
			Description: "You've been removed from the event.",
			Color:       ColorYellow,
		}
	case models.NoticeStarting:
		return &discordgo.MessageEmbed{
			Title: "Starting: " + ev.Name,
			Color: ColorPurple,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Starts at", Value: r.when(ev.StartTime)},
				{Name: "Signups", Value: signupCount(ev), Inline: true},
				{Name: "Players", Value: players(ev.Signups), Inline: true},
			},
		}
	case models.NoticeNotEnough:
		return &discordgo.MessageEmbed{
			Title: "Not enough signups: " + ev.Name,
			Description: fmt.Sprintf("Not enough signups to start! The event previously scheduled for %s has been canceled.",
				r.when(ev.StartTime)),
			Color: ColorRed,
		}
	case models.NoticeCancelled:
		return &discordgo.MessageEmbed{
			Title:       "Canceled: " + ev.Name,
			Description: fmt.Sprintf("The event previously scheduled for %s has been canceled.", r.when(ev.StartTime)),
			Color:       ColorRed,
		}
	default:
		return &discordgo.MessageEmbed{Title: ev.Name, Description: n.Text}
	}
}

// EventList renders the live events of a guild
func (r Renderer) EventList(events []models.Event) *discordgo.MessageSend {
	if len(events) == 0 {
		return &discordgo.MessageSend{Content: "No events are scheduled."}
	}

	embed := &discordgo.MessageEmbed{Title: "Scheduled events", Color: ColorPurple}
	for _, ev := range events {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  ev.Name,
			Value: fmt.Sprintf("%s · %s signed up · id `%s`", r.when(ev.StartTime), signupCount(ev), ev.ID),
		})
	}
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}

func signupCount(ev models.Event) string {
	if ev.MaxPlayers == 0 {
		return strconv.Itoa(len(ev.Signups))
	}
	return fmt.Sprintf("%d / %d", len(ev.Signups), ev.MaxPlayers)
}

func players(userIDs []string) string {
	if len(userIDs) == 0 {
		return "Nobody"
	}
	mentions := make([]string, len(userIDs))
	for i, id := range userIDs {
		mentions[i] = userMention(id)
	}
	return strings.Join(mentions, ", ")
}

func userMention(id string) string { return "<@" + id + ">" }

func roleMention(id string) string { return "<@&" + id + ">" }
