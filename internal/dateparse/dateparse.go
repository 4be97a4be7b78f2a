package dateparse

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/rs/zerolog/log"
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Parser resolves natural-language dates such as "tomorrow at 5pm"
type Parser struct {
	when     *when.Parser
	location *time.Location
}

// New creates a parser interpreting wall-clock times in loc
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	return &Parser{
		when:     w,
		location: loc,
	}
}

// Parse returns the first date found in text, relative to base
func (p *Parser) Parse(text string, base time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, p.location); err == nil {
			return t, true
		}
	}

	result, err := p.when.Parse(text, base.In(p.location))
	if err != nil {
		log.Debug().Err(err).Str("text", text).Msg("Failed to parse date")
		return time.Time{}, false
	}
	if result == nil {
		return time.Time{}, false
	}

	return result.Time, true
}
