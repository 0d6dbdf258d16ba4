package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	red "telegram-tier-entitlements/internal/infra/redis"
)

// Ensure compile-time conformance
var _ adapter.RoleAuthority = (*TierAuthority)(nil)

// TierAuthority maps tier possession onto membership in tier-private
// Telegram chats. A grant is a personal single-use invite link; a
// revocation is a kick (ban immediately lifted so the account may rejoin
// after a future purchase). The bot must be an administrator of every
// tier chat.
type TierAuthority struct {
	bot     *tgbotapi.BotAPI
	catalog *model.Catalog
	limiter *red.RateLimiter
	log     *zerolog.Logger

	callLimit  int
	callWindow time.Duration
}

func NewTierAuthority(bot *tgbotapi.BotAPI, catalog *model.Catalog, limiter *red.RateLimiter, logger *zerolog.Logger) *TierAuthority {
	l := logger.With().Str("component", "TierAuthority").Logger()
	return &TierAuthority{
		bot:        bot,
		catalog:    catalog,
		limiter:    limiter,
		log:        &l,
		callLimit:  25,
		callWindow: time.Second,
	}
}

// throttle blocks a call family when the process-wide budget for it is
// spent. Telegram enforces roughly 30 calls per second bot-wide; staying
// under that locally turns hard 429s into clean ErrRateLimited results.
func (a *TierAuthority) throttle(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.limiter == nil {
		return nil
	}
	allowed, err := a.limiter.Allow(ctx, red.PlatformCallKey(method), a.callLimit, a.callWindow)
	if err != nil {
		// Redis being down must not take entitlements down with it.
		a.log.Warn().Err(err).Msg("rate limiter unavailable; letting call through")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (a *TierAuthority) Grant(ctx context.Context, accountID int64, tier string) (string, error) {
	t, ok := a.catalog.Tier(tier)
	if !ok {
		return "", domain.ErrUnknownTier
	}
	if err := a.throttle(ctx, "invite"); err != nil {
		return "", err
	}

	// A previously kicked account must be unbanned before an invite link
	// will work for it.
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.ChatID, UserID: accountID},
		OnlyIfBanned:     true,
	}
	if _, err := a.bot.Request(unban); err != nil {
		if mapped := mapTelegramError(err); !errors.Is(mapped, domain.ErrOperationFailed) {
			return "", mapped
		}
		// "not banned" style failures are fine; the invite is the real test.
	}

	linkCfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: t.ChatID},
		MemberLimit: 1,
	}
	resp, err := a.bot.Request(linkCfg)
	if err != nil {
		return "", mapTelegramError(err)
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", domain.ErrOperationFailed
	}

	// Hand the personal link to the account. Without it the grant is
	// unusable, so a failed delivery fails the grant.
	msg := tgbotapi.NewMessage(accountID, "Your access is ready. Join here: "+link.InviteLink)
	if _, err := a.bot.Send(msg); err != nil {
		return "", mapTelegramError(err)
	}
	a.log.Debug().Int64("account_id", accountID).Str("tier", tier).Msg("grant issued")
	return link.InviteLink, nil
}

func (a *TierAuthority) RevokeBatch(ctx context.Context, accountID int64, tiers []string) ([]adapter.RevokeOutcome, error) {
	out := make([]adapter.RevokeOutcome, 0, len(tiers))
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := adapter.RevokeOutcome{Tier: tier}
		held, err := a.HasGrant(ctx, accountID, tier)
		switch {
		case err != nil:
			// A whole-batch throttle aborts everything; the caller keeps
			// its rows and retries next run.
			if errors.Is(err, domain.ErrRateLimited) {
				return nil, err
			}
			o.Err = err
		case !held:
			o.AlreadyAbsent = true
		default:
			o.Err = a.kick(ctx, accountID, tier)
		}
		out = append(out, o)
	}
	return out, nil
}

// kick removes the account from the tier chat and immediately lifts the
// ban, so only current possession is lost.
func (a *TierAuthority) kick(ctx context.Context, accountID int64, tier string) error {
	t, ok := a.catalog.Tier(tier)
	if !ok {
		return domain.ErrUnknownTier
	}
	if err := a.throttle(ctx, "ban"); err != nil {
		return err
	}
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.ChatID, UserID: accountID},
	}
	if _, err := a.bot.Request(ban); err != nil {
		return mapTelegramError(err)
	}
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.ChatID, UserID: accountID},
		OnlyIfBanned:     true,
	}
	if _, err := a.bot.Request(unban); err != nil {
		// The kick already took effect; a failed unban only blocks a
		// future rejoin and Grant retries it.
		a.log.Warn().Err(err).Int64("account_id", accountID).Str("tier", tier).Msg("post-kick unban failed")
	}
	return nil
}

func (a *TierAuthority) HasGrant(ctx context.Context, accountID int64, tier string) (bool, error) {
	t, ok := a.catalog.Tier(tier)
	if !ok {
		return false, domain.ErrUnknownTier
	}
	if err := a.throttle(ctx, "member"); err != nil {
		return false, err
	}
	member, err := a.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: t.ChatID, UserID: accountID},
	})
	if err != nil {
		mapped := mapTelegramError(err)
		if errors.Is(mapped, domain.ErrAccountNotFound) {
			return false, nil
		}
		return false, mapped
	}
	switch member.Status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	default: // "left", "kicked"
		return false, nil
	}
}

func (a *TierAuthority) ResolveAccount(ctx context.Context, accountID int64) (bool, error) {
	if err := a.throttle(ctx, "chat"); err != nil {
		return false, err
	}
	_, err := a.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: accountID},
	})
	if err != nil {
		mapped := mapTelegramError(err)
		if errors.Is(mapped, domain.ErrAccountNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// ResolveEffectiveTier walks the catalog from the highest priority down
// and returns the first tier the platform reports as held. Always a live
// lookup.
func (a *TierAuthority) ResolveEffectiveTier(ctx context.Context, accountID int64) (string, bool, error) {
	names := a.catalog.Names()
	for i := len(names) - 1; i >= 0; i-- {
		held, err := a.HasGrant(ctx, accountID, names[i])
		if err != nil {
			return "", false, err
		}
		if held {
			return names[i], true, nil
		}
	}
	return "", false, nil
}

// mapTelegramError translates API failures into domain sentinels.
func mapTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return domain.ErrOperationFailed
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == 429:
		return domain.ErrRateLimited
	case apiErr.Code == 403:
		return domain.ErrForbidden
	case strings.Contains(msg, "user not found"),
		strings.Contains(msg, "chat not found"),
		strings.Contains(msg, "participant_id_invalid"),
		strings.Contains(msg, "user is deactivated"):
		return domain.ErrAccountNotFound
	default:
		return domain.ErrOperationFailed
	}
}
