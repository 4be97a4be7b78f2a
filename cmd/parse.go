package cmd

import (
	"encoding/json"
	"strings"
	"time"

	"example.com/backstage/services/gamebot/internal/command"
	"example.com/backstage/services/gamebot/internal/dateparse"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var parseNow string

var parseCmd = &cobra.Command{
	Use:   "parse <command text>",
	Short: "Dry run a chat command",
	Long: `Tokenize a chat command and, for create, validate it exactly as the bot would.
Nothing is posted or scheduled. Prints the result as JSON.`,
	Example: `  gamebot parse "game create --name Raid --time tomorrow at 5pm --minplayers 3"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseNow, "now", "", "evaluate relative times against this RFC3339 instant")
	rootCmd.AddCommand(parseCmd)
}

// parseResult is the dry run output
type parseResult struct {
	Command command.Command       `json:"parsed"`
	Valid   bool                  `json:"valid"`
	Error   string                `json:"error,omitempty"`
	Code    models.ValidationCode `json:"code,omitempty"`
	Event   *models.Event         `json:"event,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	text = strings.TrimPrefix(text, strings.TrimSpace(cfg.Discord.Prefix))

	clock := clockwork.NewRealClock()
	if parseNow != "" {
		now, err := time.Parse(time.RFC3339, parseNow)
		if err != nil {
			return errors.Wrap(err, "invalid --now")
		}
		clock = clockwork.NewFakeClockAt(now)
	}

	loc := cfg.Events.TimeLocation()
	processor := command.NewProcessor(dateparse.New(loc), clock,
		command.WithStrictPlayerCounts(cfg.Events.StrictPlayerCounts),
		command.WithNameReplacements(cfg.Events.NameReplacements),
	)

	parsed := command.Parse(text)
	result := parseResult{Command: parsed, Valid: true}

	if parsed.Name == "create" {
		event, err := processor.ValidateCreate(models.CreateRequest{Args: parsed.Args})
		var vErr *models.ValidationError
		switch {
		case errors.As(err, &vErr):
			result.Valid = false
			result.Error = vErr.Error()
			result.Code = vErr.Code
		case err != nil:
			return err
		default:
			result.Event = event
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
