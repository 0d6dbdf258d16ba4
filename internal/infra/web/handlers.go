package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
	"telegram-tier-entitlements/internal/infra/metrics"
)

type entitlementView struct {
	AccountID     int64     `json:"account_id"`
	Tier          string    `json:"tier"`
	ExpiresAt     time.Time `json:"expires_at"`
	RemainingDays int       `json:"remaining_days"`
	AssignmentID  *string   `json:"assignment_id,omitempty"`
}

func viewOf(e *model.Entitlement, now time.Time) entitlementView {
	days := int(e.RemainingAt(now) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return entitlementView{
		AccountID:     e.AccountID,
		Tier:          e.TierName,
		ExpiresAt:     e.ExpiresAt,
		RemainingDays: days,
		AssignmentID:  e.ExternalAssignmentID,
	}
}

// tiersHandler lists the configured catalog so operators can see prices and
// durations without reading the config file.
func tiersHandler(catalog *model.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type tierView struct {
			Name         string `json:"name"`
			Price        int64  `json:"price"`
			Priority     int    `json:"priority"`
			DurationDays int    `json:"duration_days"`
		}
		var out []tierView
		for _, name := range catalog.Names() {
			t, _ := catalog.Tier(name)
			out = append(out, tierView{
				Name:         t.Name,
				Price:        t.Price,
				Priority:     t.Priority,
				DurationDays: t.DurationDays,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Data []tierView `json:"data"`
		}{Data: out})
	}
}

// statsHandler serves the per-tier ledger counts and refreshes the
// entitlement gauges on the way out.
func statsHandler(ents repository.EntitlementRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := ents.CountByTier(r.Context(), repository.NoTX)
		if err != nil {
			http.Error(w, "Failed to count entitlements", http.StatusInternalServerError)
			return
		}
		metrics.SetEntitlementsTotal(counts)

		writeJSON(w, http.StatusOK, struct {
			ActiveByTier map[string]int `json:"active_by_tier"`
		}{ActiveByTier: counts})
	}
}

// accountHandler returns everything the ledger knows about one account:
// held entitlements plus wallet balance.
func accountHandler(ents repository.EntitlementRepository, wallet adapter.Wallet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID, ok := pathInt64(r, "accountID")
		if !ok {
			http.Error(w, "Invalid account id", http.StatusBadRequest)
			return
		}

		held, err := ents.FindByAccount(ctx, repository.NoTX, accountID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Failed to load entitlements", http.StatusInternalServerError)
			return
		}
		balance, err := wallet.Balance(ctx, accountID)
		if err != nil {
			http.Error(w, "Failed to load wallet balance", http.StatusInternalServerError)
			return
		}

		now := time.Now().UTC()
		views := make([]entitlementView, 0, len(held))
		for _, e := range held {
			views = append(views, viewOf(e, now))
		}
		writeJSON(w, http.StatusOK, struct {
			AccountID     int64             `json:"account_id"`
			Entitlements  []entitlementView `json:"entitlements"`
			WalletBalance int64             `json:"wallet_balance"`
		}{AccountID: accountID, Entitlements: views, WalletBalance: balance})
	}
}

// deadLettersHandler lists recently undeliverable notifications, newest
// first. Accepts a 'limit' query parameter.
func deadLettersHandler(letters repository.NotificationLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		recent, err := letters.ListRecent(r.Context(), repository.NoTX, limit)
		if err != nil {
			http.Error(w, "Failed to list dead letters", http.StatusInternalServerError)
			return
		}

		type letterView struct {
			ID        string    `json:"id"`
			AccountID int64     `json:"account_id"`
			Tier      string    `json:"tier"`
			Kind      string    `json:"kind"`
			Amount    int64     `json:"amount"`
			Reason    string    `json:"reason"`
			CreatedAt time.Time `json:"created_at"`
		}
		out := make([]letterView, 0, len(recent))
		for _, d := range recent {
			out = append(out, letterView{
				ID:        d.ID,
				AccountID: d.Event.AccountID,
				Tier:      d.Event.TierName,
				Kind:      string(d.Event.Kind),
				Amount:    d.Event.Amount,
				Reason:    d.Reason,
				CreatedAt: d.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Data  []letterView `json:"data"`
			Limit int          `json:"limit"`
		}{Data: out, Limit: limit})
	}
}

// sweepHandler triggers a reconciliation pass on demand, optionally limited
// to the named tiers.
func sweepHandler(uc SweepService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tiers []string `json:"tiers"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		stats, err := uc.Sweep(r.Context(), req.Tiers)
		if err != nil {
			http.Error(w, "Sweep failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			ExpiredFound           int `json:"expired_found"`
			Removed                int `json:"removed"`
			SkippedMissingAccount  int `json:"skipped_missing_account"`
			SkippedMissingExternal int `json:"skipped_missing_external"`
			SkippedAlreadyRevoked  int `json:"skipped_already_revoked"`
			AccountsFailed         int `json:"accounts_failed"`
		}{
			ExpiredFound:           stats.ExpiredFound,
			Removed:                stats.Removed,
			SkippedMissingAccount:  stats.SkippedMissingAccount,
			SkippedMissingExternal: stats.SkippedMissingExternal,
			SkippedAlreadyRevoked:  stats.SkippedAlreadyRevoked,
			AccountsFailed:         stats.AccountsFailed,
		})
	}
}

// purchaseHandler applies an operator-entered payment through the same
// decision engine the ingestion path uses.
func purchaseHandler(uc PurchaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountID int64  `json:"account_id"`
			Tier      string `json:"tier"`
			Amount    int64  `json:"amount"`
			Origin    string `json:"origin"`
			Yearly    bool   `json:"yearly"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		origin := model.PaymentOrigin(req.Origin)
		switch origin {
		case "":
			origin = model.OriginOperator
		case model.OriginIngested, model.OriginWallet, model.OriginOperator:
		default:
			http.Error(w, "Unknown payment origin", http.StatusBadRequest)
			return
		}

		outcome, err := uc.Purchase(r.Context(), req.AccountID, req.Tier, req.Amount, origin, req.Yearly)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		metrics.IncPurchase(outcome.Path, outcome.TierName)
		writeJSON(w, http.StatusOK, struct {
			Path         string `json:"path"`
			Tier         string `json:"tier"`
			DaysAdded    int    `json:"days_added"`
			RefundIssued int64  `json:"refund_issued"`
			WalletDelta  int64  `json:"wallet_delta"`
		}{
			Path:         string(outcome.Path),
			Tier:         outcome.TierName,
			DaysAdded:    outcome.DaysAdded,
			RefundIssued: outcome.RefundIssued,
			WalletDelta:  outcome.WalletDelta,
		})
	}
}

// saleHandler terminates an entitlement early and reports the refund.
func saleHandler(uc SaleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountID int64  `json:"account_id"`
			Tier      string `json:"tier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		refund, err := uc.Sell(r.Context(), req.AccountID, req.Tier)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		metrics.IncSale(req.Tier, refund)
		writeJSON(w, http.StatusOK, struct {
			Tier   string `json:"tier"`
			Refund int64  `json:"refund"`
		}{Tier: req.Tier, Refund: refund})
	}
}

// writeDomainError maps domain sentinels onto HTTP statuses. Unknown errors
// stay opaque 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnknownTier):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrNotHeldInternally),
		errors.Is(err, domain.ErrNotHeldExternally):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrUnsupportedAmount),
		errors.Is(err, domain.ErrInsufficientFunds):
		metrics.IncPurchaseRejected(err.Error())
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
