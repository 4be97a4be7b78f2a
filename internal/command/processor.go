package command

import (
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/gamebot/internal/models"

	"github.com/jonboulle/clockwork"
)

// Argument keys of the create command
const (
	ArgName       = "name"
	ArgTime       = "time"
	ArgMinPlayers = "minplayers"
	ArgMaxPlayers = "maxplayers"
	ArgID         = "id"
)

// DateParser resolves natural-language dates relative to base
type DateParser interface {
	Parse(text string, base time.Time) (time.Time, bool)
}

// Processor validates create requests
type Processor struct {
	dates        DateParser
	clock        clockwork.Clock
	strictCounts bool
	replacer     *strings.Replacer
}

// Option configures a Processor
type Option func(*Processor)

// WithStrictPlayerCounts rejects unparsable player counts instead of treating them as 0
func WithStrictPlayerCounts(strict bool) Option {
	return func(p *Processor) {
		p.strictCounts = strict
	}
}

// WithNameReplacements rewrites substrings of event names, e.g. "among us" -> "amogus"
func WithNameReplacements(replacements map[string]string) Option {
	return func(p *Processor) {
		if len(replacements) == 0 {
			return
		}
		pairs := make([]string, 0, len(replacements)*2)
		for from, to := range replacements {
			if from == "" {
				continue
			}
			pairs = append(pairs, from, to)
		}
		p.replacer = strings.NewReplacer(pairs...)
	}
}

// NewProcessor creates a processor resolving times with dates against clock
func NewProcessor(dates DateParser, clock clockwork.Clock, opts ...Option) *Processor {
	p := &Processor{
		dates: dates,
		clock: clock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidateCreate checks a create request and builds the event it describes.
// The returned event has no ID, RoleID or Trigger yet.
func (p *Processor) ValidateCreate(req models.CreateRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.Args[ArgName])
	if name == "" {
		return nil, models.NewValidationError(models.MissingName)
	}

	rawTime, ok := req.Args[ArgTime]
	if !ok || strings.TrimSpace(rawTime) == "" {
		return nil, models.NewValidationError(models.MissingTime)
	}
	now := p.clock.Now()
	start, ok := p.dates.Parse(strings.TrimSpace(rawTime), now)
	if !ok {
		return nil, models.NewValidationError(models.InvalidTime)
	}
	if !start.After(now) {
		return nil, models.NewValidationError(models.PastTime)
	}

	minPlayers, err := p.playerCount(req.Args, ArgMinPlayers)
	if err != nil {
		return nil, err
	}
	maxPlayers, err := p.playerCount(req.Args, ArgMaxPlayers)
	if err != nil {
		return nil, err
	}
	if maxPlayers != 0 && minPlayers > maxPlayers {
		return nil, models.NewValidationError(models.MinExceedsMax)
	}

	if p.replacer != nil {
		name = p.replacer.Replace(name)
	}

	return &models.Event{
		Name:       name,
		StartTime:  start,
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		Signups:    []string{},
		CreatedBy:  req.CreatedBy,
		GuildID:    req.GuildID,
		ChannelID:  req.ChannelID,
		Mentions:   append([]string(nil), req.Mentions...),
		CreatedAt:  now,
	}, nil
}

func (p *Processor) playerCount(args map[string]string, key string) (int, error) {
	raw, ok := args[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		if p.strictCounts {
			return 0, models.NewValidationError(models.InvalidPlayerCount)
		}
		return 0, nil
	}
	return n, nil
}
