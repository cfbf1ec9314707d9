package alerts

import (
	"context"
	"errors"

	applog "presupuesto/internal/log"
)

// Notifier delivers alerts somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// LogNotifier writes one warning per alert.
type LogNotifier struct {
	Logger *applog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, alerts []Alert) error {
	logger := n.Logger
	if logger == nil {
		logger = applog.FromContext(ctx).WithComponent(applog.ComponentAlerts)
	}
	for _, a := range alerts {
		logger.WarnContext(ctx, "Budget threshold exceeded",
			applog.FieldCategory, a.Category,
			"spent", a.Spent.String(),
			"limit", a.Limit.String(),
			"percentage", a.Percentage.StringFixed(2))
	}
	return nil
}

// MultiNotifier fans alerts out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
