package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/gamebot/internal/api"
	"example.com/backstage/services/gamebot/internal/command"
	"example.com/backstage/services/gamebot/internal/dateparse"
	"example.com/backstage/services/gamebot/internal/discord"
	"example.com/backstage/services/gamebot/internal/engine"
	"example.com/backstage/services/gamebot/internal/journal"
	"example.com/backstage/services/gamebot/internal/messaging"
	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/scheduler"
	"example.com/backstage/services/gamebot/internal/search"
	"example.com/backstage/services/gamebot/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and run the bot",
	Long:  `Connect to Discord, process chat commands and reactions, and resolve events at their start time. Also serves the ops API.`,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc := cfg.Events.TimeLocation()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NoopTracer()
	}
	defer tracer.Close()

	metricsCollector := metrics.NewMetrics()

	lifecycleJournal, err := journal.NewRedisJournal(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis journal, continuing without history")
		lifecycleJournal = &journal.RedisJournal{}
	}
	defer lifecycleJournal.Close()

	lifecycleIndex, err := search.NewLifecycleIndex(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch index, continuing without search")
		lifecycleIndex = &search.LifecycleIndex{}
	}

	publisher, err := messaging.NewLifecyclePublisher(cfg.Azure)
	if err != nil {
		return err
	}
	defer publisher.Close()

	timer, err := scheduler.NewGocronTimer(gocron.WithLocation(loc))
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return errors.Wrap(err, "failed to create Discord session")
	}

	client := discord.NewClient(session, discord.Renderer{
		Emoji:    cfg.Discord.ReactionEmoji,
		Location: loc,
	})

	clock := clockwork.NewRealClock()
	processor := command.NewProcessor(dateparse.New(loc), clock,
		command.WithStrictPlayerCounts(cfg.Events.StrictPlayerCounts),
		command.WithNameReplacements(cfg.Events.NameReplacements),
	)

	eng := engine.New(engine.Deps{
		Processor:  processor,
		Timer:      timer,
		Notifier:   client,
		Roles:      client,
		Publishers: []engine.Publisher{lifecycleJournal, lifecycleIndex, publisher},
		Metrics:    metricsCollector,
		Tracer:     tracer,
		Clock:      clock,
	}, engine.Policy{
		DeleteRoleOnResolve: cfg.Events.DeleteRoleOnResolve,
		RolePrefix:          cfg.Events.RolePrefix,
	})

	bot := discord.NewBot(ctx, eng, client, tracer, cfg.Discord.Prefix, cfg.Discord.ReactionEmoji)
	bot.Register(session)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	g.Go(func() error {
		timer.Start()
		log.Info().Str("location", loc.String()).Msg("Event scheduler started")

		<-ctx.Done()
		return timer.Shutdown()
	})

	g.Go(func() error {
		if err := session.Open(); err != nil {
			metricsCollector.SetHealth("discord", false)
			return errors.Wrap(err, "failed to connect to Discord")
		}
		metricsCollector.SetHealth("discord", true)

		<-ctx.Done()
		metricsCollector.SetHealth("discord", false)
		return session.Close()
	})

	if cfg.MetricsEnabled {
		server := api.NewServer(cfg.Server, eng, lifecycleJournal, lifecycleIndex, metricsCollector, tracer)

		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Bot error")
		return err
	}

	log.Info().Msg("Bot shutting down gracefully")
	return nil
}
