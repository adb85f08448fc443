package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillm/rebalance-bot/internal/ai"
	"github.com/kirillm/rebalance-bot/internal/analyst"
	"github.com/kirillm/rebalance-bot/internal/cache"
	"github.com/kirillm/rebalance-bot/internal/config"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
	"github.com/kirillm/rebalance-bot/internal/market"
	"github.com/kirillm/rebalance-bot/internal/notify"
	"github.com/kirillm/rebalance-bot/internal/planner"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
	"github.com/kirillm/rebalance-bot/internal/reconcile"
	"github.com/kirillm/rebalance-bot/internal/review"
	"github.com/kirillm/rebalance-bot/internal/scheduler"
	"github.com/kirillm/rebalance-bot/internal/storage"
	"github.com/kirillm/rebalance-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	log.Info().Msg("🚀 Запуск rebalance-bot")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Некорректная конфигурация")
	}

	store, err := storage.NewPostgresStorage(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Не удалось подключиться к базе")
	}
	defer store.Close()

	bybit := exchange.NewBybitClient(
		cfg.Bybit.APIKey,
		cfg.Bybit.APISecret,
		cfg.Bybit.BaseURL,
		cfg.Bybit.RatePerSec,
		cfg.Bybit.HTTPTimeout,
		log,
	)

	signalCache := cache.New()
	news := market.NewNewsClient(cfg.News.BaseURL, cfg.News.Token, cfg.News.HTTPTimeout, log)
	providers := market.NewProviders(bybit, news, signalCache, market.Options{
		KlineInterval:  cfg.Review.KlineInterval,
		KlineLimit:     cfg.Review.KlineLimit,
		OrderBookDepth: cfg.Review.OrderBookDepth,
		NewsLimit:      cfg.Review.NewsLimit,
		TTL:            cfg.Cache.SignalTTL,
	}, log)

	model := ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.HTTPTimeout, log)

	var decisionNotifier review.Notifier
	var orderNotifier reconcile.Notifier
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Не удалось создать telegram-нотификатор")
		}
		decisionNotifier = tg
		orderNotifier = tg
	}

	snapshots := portfolio.NewBuilder(bybit, log)
	orderPlanner := planner.New(bybit, store.Orders(), log)
	analysts := analyst.New(model, providers, store.Orders(), store.Analysis(), log)
	synth := review.NewSynthesizer(model, store.Results(), log)
	orchestrator := review.NewOrchestrator(
		analysts,
		synth,
		snapshots,
		orderPlanner,
		decisionNotifier,
		cfg.Review.FanoutWorkers,
		log,
	)
	reconciler := reconcile.NewJob(bybit, store.Orders(), store.Agents(), orderNotifier, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, log)
	sched.Start()
	defer sched.Stop()

	if _, err := sched.AddEvery(cfg.Reconcile.Interval, &reconcileJob{job: reconciler}); err != nil {
		log.Fatal().Err(err).Msg("Не удалось зарегистрировать задачу сверки")
	}

	// Синхронизация расписания подхватывает агентов, активированных
	// после старта, и снимает деактивированных
	reviewSync := scheduler.NewAgentSync(sched, store.Agents(), cfg.Review.DefaultInterval,
		func(agent domain.Agent) scheduler.Job {
			return &reviewJob{agentID: agent.ID, agents: store.Agents(), orch: orchestrator}
		}, log)
	if err := reviewSync.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Не удалось зарегистрировать задачи ревью")
	}
	if _, err := sched.AddEvery(cfg.Review.ScheduleSyncEach, reviewSync); err != nil {
		log.Fatal().Err(err).Msg("Не удалось зарегистрировать синхронизацию расписания")
	}

	log.Info().Msg("✅ Бот запущен")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Остановка бота...")
	cancel()
}

// reviewJob тик ревью одного агента. Агент перечитывается на каждом тике:
// статус мог измениться между тиками.
type reviewJob struct {
	agentID int64
	agents  domain.AgentRepository
	orch    *review.Orchestrator
}

func (j *reviewJob) Name() string {
	return fmt.Sprintf("review-agent-%d", j.agentID)
}

func (j *reviewJob) Run(ctx context.Context) error {
	agent, err := j.agents.GetByID(j.agentID)
	if err != nil {
		return fmt.Errorf("failed to load agent %d: %w", j.agentID, err)
	}
	if !agent.IsActive() {
		return nil
	}
	return j.orch.Run(ctx, agent)
}

// reconcileJob тик глобальной сверки ордеров
type reconcileJob struct {
	job *reconcile.Job
}

func (j *reconcileJob) Name() string {
	return "reconcile-orders"
}

func (j *reconcileJob) Run(ctx context.Context) error {
	return j.job.Run(ctx)
}
