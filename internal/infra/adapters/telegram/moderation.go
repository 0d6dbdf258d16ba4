package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.Moderation = (*Moderation)(nil)

// Moderation handles the platform-side privileges that ride alongside
// tier possession.
type Moderation struct {
	bot     *tgbotapi.BotAPI
	catalog *model.Catalog
	log     *zerolog.Logger
}

func NewModeration(bot *tgbotapi.BotAPI, catalog *model.Catalog, logger *zerolog.Logger) *Moderation {
	l := logger.With().Str("component", "Moderation").Logger()
	return &Moderation{bot: bot, catalog: catalog, log: &l}
}

// LiftRestrictions restores default member permissions in every tier chat
// where the account currently sits restricted. Chats the account is not in
// are skipped silently.
func (m *Moderation) LiftRestrictions(ctx context.Context, accountID int64) error {
	allow := true
	perms := &tgbotapi.ChatPermissions{
		CanSendMessages:       allow,
		CanSendMediaMessages:  allow,
		CanSendPolls:          allow,
		CanSendOtherMessages:  allow,
		CanAddWebPagePreviews: allow,
	}
	for _, name := range m.catalog.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, _ := m.catalog.Tier(name)
		member, err := m.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: t.ChatID, UserID: accountID},
		})
		if err != nil || member.Status != "restricted" {
			continue
		}
		cfg := tgbotapi.RestrictChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.ChatID, UserID: accountID},
			Permissions:      perms,
		}
		if _, err := m.bot.Request(cfg); err != nil {
			m.log.Warn().Err(err).Int64("account_id", accountID).Str("tier", name).Msg("lift restrictions failed")
		}
	}
	return nil
}

// StripDelegated demotes the account in the tier's chat, removing any
// admin-style privileges it held through the entitlement.
func (m *Moderation) StripDelegated(ctx context.Context, accountID int64, tier string) error {
	t, ok := m.catalog.Tier(tier)
	if !ok {
		return domain.ErrUnknownTier
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.ChatID, UserID: accountID},
		// All privilege flags false: a full demotion.
	}
	if _, err := m.bot.Request(cfg); err != nil {
		return mapTelegramError(err)
	}
	return nil
}
