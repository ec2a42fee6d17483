package worker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"remanejo/internal/amqp"
	"remanejo/internal/backend"
	"remanejo/internal/core"
	applog "remanejo/internal/log"
	"remanejo/internal/realloc"
	"remanejo/internal/services"
	"remanejo/internal/sheets"
)

// Executor runs a reallocation; implemented by services.RunService.
type Executor interface {
	Execute(ctx context.Context, src sheets.BudgetSource, name string, cfg realloc.Config) (*services.RunOutcome, error)
}

// SourceOpener resolves a source reference; implemented by backend.DefaultFactory.
type SourceOpener interface {
	OpenSource(ctx context.Context, source string) (sheets.BudgetSource, error)
}

// Consumer is the broker side of the worker; implemented by amqp.Client.
type Consumer interface {
	ConsumeRunRequests(ctx context.Context, handler func(context.Context, *amqp.RunRequest) error) error
	Reconnect(ctx context.Context) error
}

var (
	_ Executor     = (*services.RunService)(nil)
	_ SourceOpener = (*backend.DefaultFactory)(nil)
	_ Consumer     = (*amqp.Client)(nil)
)

// RunWorker executes run requests taken from the queue. Storage and event
// publishing happen inside the service.
type RunWorker struct {
	service Executor
	sources SourceOpener
	rules   realloc.Config
	logger  *applog.Logger
}

func NewRunWorker(service Executor, sources SourceOpener, rules realloc.Config, logger *applog.Logger) *RunWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &RunWorker{
		service: service,
		sources: sources,
		rules:   rules,
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleRunRequest processes one request. Requests that can never succeed
// (missing file, unreadable budget, bad rules) are logged and acknowledged;
// any other error is returned so the message is requeued.
func (w *RunWorker) HandleRunRequest(ctx context.Context, req *amqp.RunRequest) error {
	logger := w.logger.With("request_id", req.ID, applog.FieldSource, req.Source)

	rules, err := w.RulesFor(req)
	if err != nil {
		logger.ErrorContext(ctx, "Discarding run request with invalid rules", applog.FieldError, err)
		return nil
	}

	src, err := w.sources.OpenSource(ctx, req.Source)
	if err != nil {
		if permanent(err) {
			logger.ErrorContext(ctx, "Discarding run request, source unavailable", applog.FieldError, err)
			return nil
		}
		return fmt.Errorf("open source %s: %w", req.Source, err)
	}

	out, err := w.service.Execute(services.WithRequestID(ctx, req.ID), src, "", rules)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			logger.ErrorContext(ctx, "Discarding run request, budget rejected", applog.FieldError, err)
			return nil
		}
		return err
	}

	logger.InfoContext(ctx, "Run request processed",
		applog.FieldRunID, out.ID,
		"transfers", len(out.Result.Consolidated),
		"no_negative", out.Result.Validation.NoNegativeBalance)
	return nil
}

// RulesFor applies the overrides carried by a request to the worker rules.
func (w *RunWorker) RulesFor(req *amqp.RunRequest) (realloc.Config, error) {
	rules := w.rules
	if req.ProhibitedFund != nil {
		if *req.ProhibitedFund < 0 {
			return rules, fmt.Errorf("prohibited fund %d must not be negative", *req.ProhibitedFund)
		}
		rules.ProhibitedFund = core.FundCode(*req.ProhibitedFund)
	}
	if req.ProhibitedNatures != nil {
		rules.ProhibitedNatures = realloc.NewCodeSet(req.ProhibitedNatures...)
	}
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

// Run consumes requests until ctx is done, reconnecting whenever the broker
// link breaks.
func (w *RunWorker) Run(ctx context.Context, consumer Consumer) error {
	for {
		err := consumer.ConsumeRunRequests(ctx, w.HandleRunRequest)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !amqp.IsConnectionError(err) {
			return err
		}
		w.logger.WarnContext(ctx, "AMQP connection lost, reconnecting", applog.FieldError, err)
		if err := consumer.Reconnect(ctx); err != nil {
			return err
		}
	}
}

func permanent(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, backend.ErrNoSpreadsheet)
}
