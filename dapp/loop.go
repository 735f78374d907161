package dapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"texttools/common"
	"texttools/logging"
	"texttools/rollup"
)

// Coordinator hands out work items. Finish carries the verdict for the
// previous item and blocks until the next one is available.
type Coordinator interface {
	Finish(ctx context.Context, status common.Status) (*common.RollupRequest, error)
}

// Loop is the process-lifetime poll loop. It processes one work item at a
// time and never gives up on the coordinator.
type Loop struct {
	coordinator   Coordinator
	dispatcher    *Dispatcher
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewLoop creates a Loop that waits retryInterval after any failed cycle.
func NewLoop(coordinator Coordinator, dispatcher *Dispatcher, retryInterval time.Duration, logger *zap.Logger) *Loop {
	return &Loop{
		coordinator:   coordinator,
		dispatcher:    dispatcher,
		retryInterval: retryInterval,
		logger:        logging.OrNop(logger).Named("loop"),
	}
}

// Run polls until ctx is cancelled. The first call to the coordinator
// sends accept; each later call sends the verdict of the item just processed.
// A failed finish is retried with the same status.
func (l *Loop) Run(ctx context.Context) error {
	status := common.StatusAccept
	for {
		req, err := l.coordinator.Finish(ctx, status)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, rollup.ErrNoPendingInput) {
				l.logger.Debug("No pending input", zap.Duration("retry_in", l.retryInterval))
			} else {
				l.logger.Warn("Coordinator not ready or http error; retrying",
					zap.Error(err),
					zap.Duration("retry_in", l.retryInterval))
			}
			if !l.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		status = l.cycle(ctx, req)
	}
}

// cycle processes one work item and returns the status to send next.
func (l *Loop) cycle(ctx context.Context, req *common.RollupRequest) (status common.Status) {
	defer func() {
		if r := recover(); r != nil {
			err := &common.UnexpectedError{Err: fmt.Errorf("%v", r)}
			l.logger.Error("Unexpected error; retrying", zap.Error(err), zap.Duration("retry_in", l.retryInterval))
			l.wait(ctx)
			status = common.StatusAccept
		}
	}()

	fields := []zap.Field{zap.String("request_type", string(req.RequestType))}
	if md := req.Data.Metadata; md != nil {
		fields = append(fields, zap.Uint64("input_index", md.InputIndex), zap.String("msg_sender", md.MsgSender))
	}

	status, err := l.dispatcher.Dispatch(ctx, req)
	switch {
	case err == nil:
		l.logger.Debug("Processed work item", append(fields, zap.String("status", string(status)))...)
		return status
	case common.IsTransportError(err):
		l.logger.Warn("Could not deliver outcome; retrying",
			append(fields, zap.Error(err), zap.Duration("retry_in", l.retryInterval))...)
		l.wait(ctx)
		return status
	default:
		l.logger.Error("Unexpected error; retrying",
			append(fields, zap.Error(err), zap.Duration("retry_in", l.retryInterval))...)
		l.wait(ctx)
		return common.StatusAccept
	}
}

// wait sleeps for the retry interval. It returns false if ctx ended first.
func (l *Loop) wait(ctx context.Context) bool {
	t := time.NewTimer(l.retryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
