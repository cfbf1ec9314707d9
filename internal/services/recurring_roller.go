package services

import (
	"context"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	applog "presupuesto/internal/log"
)

// RecurringRoller materializes due recurring rules into the ledger.
type RecurringRoller struct {
	rates  core.RateTable
	logger *applog.Logger
}

func NewRecurringRoller(rates core.RateTable, logger *applog.Logger) *RecurringRoller {
	if logger == nil {
		logger = applog.Default(applog.ComponentRecurring)
	}
	return &RecurringRoller{rates: rates, logger: logger.WithComponent(applog.ComponentRecurring)}
}

// Roll appends one transaction dated today for every due rule and advances
// its LastApplied. Each rule is considered once per call, so a second call
// on the same day adds nothing. Rules that cannot be rolled are logged and
// skipped.
func (r *RecurringRoller) Roll(ctx context.Context, l *ledger.Ledger, today core.Date) []core.Transaction {
	rules := l.Recurring()
	created := make([]core.Transaction, 0)

	for _, rule := range rules {
		due, err := IsRuleDue(rule, today)
		if err != nil {
			r.logger.ErrorContext(ctx, "Cannot check recurring rule",
				applog.FieldRuleID, rule.ID, applog.FieldError, err)
			continue
		}
		if !due {
			continue
		}
		if _, ok := r.rates.Rate(rule.Currency); !ok {
			r.logger.WarnContext(ctx, "Recurring rule has an unknown currency",
				applog.FieldRuleID, rule.ID, applog.FieldCurrency, rule.Currency)
			continue
		}

		draft := core.Transaction{
			Type:     rule.Type,
			Amount:   rule.Amount,
			Currency: core.NormalizeCode(string(rule.Currency)),
			Date:     today,
			Category: rule.Category,
			Notes:    rule.Notes,
		}
		if err := draft.Validate(); err != nil {
			r.logger.WarnContext(ctx, "Recurring rule produces an invalid transaction",
				applog.FieldRuleID, rule.ID, applog.FieldError, err)
			continue
		}

		tx := l.Append(draft)
		if err := l.MarkRecurringApplied(rule.ID, today); err != nil {
			r.logger.ErrorContext(ctx, "Failed to advance recurring rule",
				applog.FieldRuleID, rule.ID, applog.FieldError, err)
		}
		created = append(created, tx)

		r.logger.InfoContext(ctx, "Created transaction from recurring rule",
			applog.FieldRuleID, rule.ID,
			applog.FieldTxID, tx.ID,
			applog.FieldAmount, tx.Amount.String(),
			"period", rule.Every)
	}

	if len(created) > 0 {
		r.logger.InfoContext(ctx, "Recurring roll complete",
			"created", len(created), "rules", len(rules))
	}
	return created
}
