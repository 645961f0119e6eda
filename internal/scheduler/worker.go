package scheduler

import (
	"context"
	"fmt"

	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/platform/config"
	"vdestor_backend/platform/logger"
	"vdestor_backend/platform/redisx"

	"github.com/hibiken/asynq"
)

// LogWriter persists search log entries.
type LogWriter interface {
	Insert(ctx context.Context, entry querylog.Entry) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logs   LogWriter
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, logs LogWriter, log *logger.Logger) (*Worker, error) {
	opt, err := redisx.AsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		logs:   logs,
		log:    log,
	}
	w.mux = w.newMux()

	return w, nil
}

func (w *Worker) newMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSearchLogged, w.handleSearchLogged)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSearchLogged(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSearchLoggedPayload(task)
	if err != nil {
		return fmt.Errorf("decode search log: %v: %w", err, asynq.SkipRetry)
	}

	entry := payload.entry()
	if err := entry.Validate(); err != nil {
		w.log.Warn("dropping invalid search log", "error", err)
		return fmt.Errorf("invalid search log: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.logs.Insert(ctx, entry); err != nil {
		w.log.DatabaseError("insert_search_log", err)
		return err
	}
	return nil
}
