package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/digitalpakistan/quiz-session-api/engine"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

const (
	TypeExpireAttempt = "attempt:expire"

	// Slack before the expiry task fires, so a submit in flight right at
	// the deadline wins the race. The engine still grades a late submit
	// as expired.
	expiryGrace = 1 * time.Second
)

// Scheduler is the timer collaborator of the session engine: it fires one
// expiry task per attempt at the deadline, and sweeps periodically for
// attempts the queue missed (e.g. tasks scheduled before a crash).
type Scheduler struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	cron   *cron.Cron
	engine *engine.Engine
	clock  engine.Clock
}

type ExpirePayload struct {
	AttemptID string `json:"attempt_id"`
}

func NewScheduler(redisURL string, eng *engine.Engine, clock engine.Clock) *Scheduler {
	addr := strings.TrimPrefix(redisURL, "redis://")
	redisOpt := asynq.RedisClientOpt{
		Addr: addr,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			utils.LogError("Job failed: type=%s error=%v", task.Type(), err)
		}),
		Logger: &AsynqLogger{},
	})

	mux := asynq.NewServeMux()

	s := &Scheduler{
		client: client,
		server: server,
		mux:    mux,
		cron:   cron.New(),
		engine: eng,
		clock:  clock,
	}

	s.mux.HandleFunc(TypeExpireAttempt, s.handleExpireAttempt)

	return s
}

// Start runs the queue worker and the sweep. The worker runs in its own
// goroutine so Start returns once the sweep schedule is registered.
func (s *Scheduler) Start() error {
	utils.LogStartup("Starting expiry queue worker...")

	go func() {
		if err := s.server.Run(s.mux); err != nil {
			utils.LogError("Expiry queue worker stopped: %v", err)
		}
	}()

	if _, err := s.cron.AddFunc("@every 1m", s.sweepOverdue); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	s.cron.Start()

	utils.LogStartup("Expiry sweep scheduled every minute")
	return nil
}

func (s *Scheduler) Stop() {
	utils.LogShutdown("Stopping expiry scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.server.Stop()
	s.server.Shutdown()
	if err := s.client.Close(); err != nil {
		utils.LogError("Error closing queue client: %v", err)
	}
}

// ScheduleExpiry enqueues the deadline task for an attempt. Failures are
// reported to the caller but are not fatal for the attempt: the sweep
// expires anything the queue misses.
func (s *Scheduler) ScheduleExpiry(attemptID string, in time.Duration) error {
	payload, err := json.Marshal(ExpirePayload{AttemptID: attemptID})
	if err != nil {
		return fmt.Errorf("failed to marshal expiry payload: %w", err)
	}

	if in < 0 {
		in = 0
	}

	task := asynq.NewTask(TypeExpireAttempt, payload)
	info, err := s.client.Enqueue(task,
		asynq.ProcessIn(in+expiryGrace),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue expiry task: %w", err)
	}

	utils.LogJobs("Scheduled expiry for attempt %s in %v (task %s)", attemptID, in+expiryGrace, info.ID)
	return nil
}

func (s *Scheduler) handleExpireAttempt(ctx context.Context, task *asynq.Task) error {
	var payload ExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal expiry payload: %w", err)
	}

	result, err := s.engine.Expire(payload.AttemptID)
	if err != nil {
		// Already submitted, or never restored after a wipe. Either way
		// there is nothing left to expire.
		if errors.Is(err, engine.ErrAttemptFinalized) || errors.Is(err, engine.ErrAttemptNotFound) {
			utils.LogJobs("Expiry task for attempt %s: nothing to do (%v)", payload.AttemptID, err)
			return nil
		}
		return fmt.Errorf("failed to expire attempt %s: %w", payload.AttemptID, err)
	}

	utils.LogJobs("Expired attempt %s: %d/%d correct", payload.AttemptID, result.Correct, result.Total)
	return nil
}

// sweepOverdue expires in-progress attempts whose deadline has passed
// without a queue task firing.
func (s *Scheduler) sweepOverdue() {
	overdue := s.engine.Overdue(s.clock.Now())
	if len(overdue) == 0 {
		return
	}

	utils.LogJobs("Sweep found %d overdue attempts", len(overdue))
	for _, attemptID := range overdue {
		if _, err := s.engine.Expire(attemptID); err != nil {
			if errors.Is(err, engine.ErrAttemptFinalized) {
				continue // lost the race to a submit or queue task
			}
			utils.LogError("Sweep failed to expire attempt %s: %v", attemptID, err)
		}
	}
}

// AsynqLogger adapts asynq's logger to the prefix helpers.
type AsynqLogger struct{}

func (l *AsynqLogger) Debug(args ...interface{}) {
	utils.LogDebug(fmt.Sprint(args...))
}

func (l *AsynqLogger) Info(args ...interface{}) {
	utils.LogInfo(fmt.Sprint(args...))
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}

func (l *AsynqLogger) Error(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}
