package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ adapter.Notifier = (*Notifier)(nil)

// Notifier delivers lifecycle events as direct messages. Delivery is
// best-effort: a failure is parked in the dead-letter log for operator
// replay and never surfaces to the caller.
type Notifier struct {
	bot         *tgbotapi.BotAPI
	deadLetters repository.NotificationLogRepository
	log         *zerolog.Logger
}

func NewNotifier(bot *tgbotapi.BotAPI, deadLetters repository.NotificationLogRepository, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "Notifier").Logger()
	return &Notifier{bot: bot, deadLetters: deadLetters, log: &l}
}

func (n *Notifier) Notify(ctx context.Context, event model.Notification) {
	msg := tgbotapi.NewMessage(event.AccountID, renderNotification(event))
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).
			Int64("account_id", event.AccountID).
			Str("kind", string(event.Kind)).
			Msg("notification undeliverable; dead-lettering")
		d := &repository.DeadLetter{Event: event, Reason: err.Error()}
		if saveErr := n.deadLetters.Save(ctx, nil, d); saveErr != nil {
			n.log.Error().Err(saveErr).Msg("dead-letter save failed; event lost")
		}
	}
}

func renderNotification(e model.Notification) string {
	switch e.Kind {
	case model.NotifyPurchased:
		return fmt.Sprintf("Welcome to %s! Your membership is active.", e.TierName)
	case model.NotifyExtended:
		return fmt.Sprintf("Your %s membership has been extended.", e.TierName)
	case model.NotifyUpgraded:
		return fmt.Sprintf("You have been upgraded to %s.", e.TierName)
	case model.NotifyExpired:
		return fmt.Sprintf("Your %s membership has expired.", e.TierName)
	case model.NotifySold:
		return fmt.Sprintf("Your %s membership was sold back for %d.", e.TierName, e.Amount)
	default:
		return fmt.Sprintf("Update on your %s membership.", e.TierName)
	}
}
