package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
	"telegram-tier-entitlements/internal/infra/i18n"
	"telegram-tier-entitlements/internal/infra/metrics"
)

type purchaseService interface {
	Purchase(ctx context.Context, accountID int64, tierName string, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error)
}

type saleService interface {
	Sell(ctx context.Context, accountID int64, tier string) (int64, error)
}

type bumpService interface {
	Claim(ctx context.Context, accountID int64) (int64, error)
}

// Bot polls Telegram updates and maps member commands onto the entitlement
// engine. All purchases entered here are wallet-funded; coins arrive in the
// wallet through ingestion or the bump bonus, never through the bot itself.
type Bot struct {
	bot      *tgbotapi.BotAPI
	catalog  *model.Catalog
	purchase purchaseService
	sale     saleService
	bump     bumpService
	ents     repository.EntitlementRepository
	wallet   adapter.Wallet
	tr       *i18n.Translator
	workers  int
	log      *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewBot(
	bot *tgbotapi.BotAPI,
	catalog *model.Catalog,
	purchase purchaseService,
	sale saleService,
	bump bumpService,
	ents repository.EntitlementRepository,
	wallet adapter.Wallet,
	tr *i18n.Translator,
	workers int,
	logger *zerolog.Logger,
) *Bot {
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "Bot").Logger()
	return &Bot{
		bot:      bot,
		catalog:  catalog,
		purchase: purchase,
		sale:     sale,
		bump:     bump,
		ents:     ents,
		wallet:   wallet,
		tr:       tr,
		workers:  workers,
		log:      &l,
	}
}

func (b *Bot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := b.handleUpdate(ctx, up); err != nil {
						b.log.Warn().Err(err).Int("worker", id).Msg("update failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (b *Bot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

func (b *Bot) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  b.handleStart,
		"help":   b.handleStart,
		"tiers":  b.handleTiers,
		"status": b.handleStatus,
		"buy":    b.handleBuy,
		"sell":   b.handleSell,
		"bump":   b.handleBump,
	}
}

func (b *Bot) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	if up.Message == nil || !up.Message.IsCommand() {
		return nil
	}
	// Commands are only meaningful in the private chat with the bot.
	if chat := up.Message.Chat; chat != nil && !chat.IsPrivate() {
		return nil
	}

	cmd := up.Message.Command()
	handler, ok := b.commandRoutes()[cmd]
	if !ok {
		return nil
	}

	ctx, cancelFn := context.WithTimeout(ctx, 30*time.Second)
	defer cancelFn()

	if err := handler(ctx, up.Message); err != nil {
		metrics.IncBotCommand("/"+cmd, "error")
		return fmt.Errorf("handle /%s: %w", cmd, err)
	}
	metrics.IncBotCommand("/"+cmd, "ok")
	return nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	return b.send(message.Chat.ID, b.tr.T("welcome_message")+"\n\n"+b.tr.T("help_message"))
}

func (b *Bot) handleTiers(ctx context.Context, message *tgbotapi.Message) error {
	var sb strings.Builder
	sb.WriteString(b.tr.T("tiers_header"))
	for _, name := range b.catalog.Names() {
		t, _ := b.catalog.Tier(name)
		sb.WriteString("\n" + b.tr.T("tier_line", t.Name, t.Price, t.DurationDays))
	}
	return b.send(message.Chat.ID, sb.String())
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) error {
	accountID := message.From.ID

	held, err := b.ents.FindByAccount(ctx, repository.NoTX, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return b.send(message.Chat.ID, b.tr.T("error_generic"))
	}
	balance, err := b.wallet.Balance(ctx, accountID)
	if err != nil {
		return b.send(message.Chat.ID, b.tr.T("error_generic"))
	}

	var sb strings.Builder
	if len(held) == 0 {
		sb.WriteString(b.tr.T("status_none"))
	} else {
		sb.WriteString(b.tr.T("status_header"))
		now := time.Now().UTC()
		for _, e := range held {
			days := int(e.RemainingAt(now).Hours() / 24)
			if days < 0 {
				days = 0
			}
			sb.WriteString("\n" + b.tr.T("status_line", e.TierName, e.ExpiresAt.Format("2006-01-02"), days))
		}
	}
	sb.WriteString("\n\n" + b.tr.T("status_balance", balance))
	return b.send(message.Chat.ID, sb.String())
}

func (b *Bot) handleBuy(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return b.send(message.Chat.ID, b.tr.T("usage_buy"))
	}
	tierName := args[0]
	yearly := len(args) > 1 && strings.EqualFold(args[1], "yearly")

	tier, ok := b.catalog.Tier(tierName)
	if !ok {
		return b.send(message.Chat.ID, b.tr.T("buy_unknown_tier", tierName))
	}
	price := tier.Price
	if yearly {
		price = tier.Price * 12
	}

	outcome, err := b.purchase.Purchase(ctx, message.From.ID, tierName, price, model.OriginWallet, yearly)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			return b.send(message.Chat.ID, b.tr.T("buy_insufficient", tierName))
		case errors.Is(err, domain.ErrUnsupportedAmount):
			return b.send(message.Chat.ID, b.tr.T("buy_unsupported", tierName))
		case errors.Is(err, domain.ErrUnknownTier):
			return b.send(message.Chat.ID, b.tr.T("buy_unknown_tier", tierName))
		}
		if sendErr := b.send(message.Chat.ID, b.tr.T("error_generic")); sendErr != nil {
			return sendErr
		}
		return err
	}
	return b.send(message.Chat.ID, b.tr.T("buy_ok", outcome.TierName, outcome.DaysAdded))
}

func (b *Bot) handleSell(ctx context.Context, message *tgbotapi.Message) error {
	tierName := strings.TrimSpace(message.CommandArguments())
	if tierName == "" {
		return b.send(message.Chat.ID, b.tr.T("usage_sell"))
	}

	refund, err := b.sale.Sell(ctx, message.From.ID, tierName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotHeldInternally),
			errors.Is(err, domain.ErrNotHeldExternally),
			errors.Is(err, domain.ErrUnknownTier):
			return b.send(message.Chat.ID, b.tr.T("sell_not_held", tierName))
		}
		if sendErr := b.send(message.Chat.ID, b.tr.T("error_generic")); sendErr != nil {
			return sendErr
		}
		return err
	}
	return b.send(message.Chat.ID, b.tr.T("sell_ok", tierName, refund))
}

func (b *Bot) handleBump(ctx context.Context, message *tgbotapi.Message) error {
	bonus, err := b.bump.Claim(ctx, message.From.ID)
	if err != nil {
		if errors.Is(err, domain.ErrOnCooldown) {
			return b.send(message.Chat.ID, b.tr.T("bump_cooldown"))
		}
		if sendErr := b.send(message.Chat.ID, b.tr.T("error_generic")); sendErr != nil {
			return sendErr
		}
		return err
	}
	return b.send(message.Chat.ID, b.tr.T("bump_ok", bonus))
}

func (b *Bot) send(chatID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
