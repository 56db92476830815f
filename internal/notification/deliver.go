package notification

import (
	"context"
	"log/slog"
	"time"
)

// DispatchOutcome records the result of one delivery attempt. It is only
// logged and counted; callers of the notify endpoint never see it.
type DispatchOutcome struct {
	TaskID      string        `json:"task_id"`
	Sender      string        `json:"sender"`
	Success     bool          `json:"success"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// Deliver performs a single best-effort attempt to send msg and logs the
// outcome. Deliver itself never fails; the error, if any, is carried in the
// returned outcome.
func Deliver(ctx context.Context, sender Sender, msg OutboundMessage, taskID string, logger *slog.Logger) DispatchOutcome {
	start := time.Now()
	err := sender.Send(ctx, msg)

	outcome := DispatchOutcome{
		TaskID:   taskID,
		Sender:   sender.Name(),
		Success:  err == nil,
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		outcome.ErrorDetail = err.Error()
		logger.ErrorContext(ctx, "notification: delivery failed",
			slog.String("task_id", taskID),
			slog.String("sender", outcome.Sender),
			slog.String("to", msg.To()),
			slog.Duration("duration", outcome.Duration),
			slog.String("error", outcome.ErrorDetail),
		)
		return outcome
	}

	logger.InfoContext(ctx, "notification: email sent",
		slog.String("task_id", taskID),
		slog.String("sender", outcome.Sender),
		slog.String("to", msg.To()),
		slog.Duration("duration", outcome.Duration),
	)
	return outcome
}
