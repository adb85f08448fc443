package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job фоновая задача по расписанию
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler управляет фоновыми задачами.
// Каждая запись обернута SkipIfStillRunning: пока тик задачи не завершился,
// следующий пропускается. Это сериализует ревью на каждого агента и
// проходы сверки без внешних блокировок.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  zerolog.Logger
}

// New создает планировщик фоновых задач
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	slog := log.With().Str("component", "scheduler").Logger()
	cl := &cronLogger{log: slog}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		ctx: ctx,
		log: slog,
	}
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("✅ Планировщик запущен")
}

// Stop останавливает планировщик, дождавшись активных задач
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Планировщик остановлен")
}

// AddEvery регистрирует задачу с фиксированным интервалом
func (s *Scheduler) AddEvery(interval time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("non-positive interval for job %s", job.Name())
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := job.Run(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Задача завершилась с ошибкой")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.log.Info().
		Str("job", job.Name()).
		Dur("interval", interval).
		Msg("📝 Задача зарегистрирована")
	return id, nil
}

// Remove снимает задачу с расписания
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// cronLogger адаптер cron.Logger поверх zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
