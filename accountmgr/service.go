package accountmgr

import (
	"context"
	"log/slog"

	"github.com/alovak/accountflow/accountmgr/models"
	"github.com/alovak/accountflow/internal/batch"
	"github.com/alovak/accountflow/internal/provider"
)

// Gateway is the slice of the provider client the manager depends on. All
// calls are blocking; a failed call is reported as an error and never
// retried here.
type Gateway interface {
	LinkedAccounts(ctx context.Context, userID string) ([]provider.LinkedAccount, error)
	Cards(ctx context.Context, accountID string) ([]*models.Card, error)
	UpdateCardStatus(ctx context.Context, cardID string, target models.Status) error
	DeleteCard(ctx context.Context, cardID string) error
	MobileAccess(ctx context.Context, userIDs []string) (map[string]bool, error)
	LockMobileAccess(ctx context.Context, userID string) error
	DeactivateRail(ctx context.Context, userID, railID string) error
}

// Manager aggregates per-customer state from the backend services into the
// repository and runs the fraud-response cancellation workflow against it.
type Manager struct {
	gw     Gateway
	repo   *Repository
	cfg    *Config
	logger *slog.Logger
}

func NewManager(gw Gateway, repo *Repository, cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{
		gw:     gw,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "accountmgr")),
	}
}

// FetchAccounts resolves the unified account record for every given user id.
// Ids are partitioned into chunks of the configured batch size and fanned
// out over the configured number of workers; each chunk issues one batched
// mobile-entitlement call and then resolves its users sequentially.
//
// The returned map carries exactly one entry per requested id: a record, or
// nil when that user's identity or card lookup failed. Failures are local —
// one user or one chunk never aborts its siblings. Successfully fetched
// records replace repository entries; absent results leave any prior entry
// untouched. The only error returned is context cancellation.
func (m *Manager) FetchAccounts(ctx context.Context, userIDs []string) (map[string]*models.Account, error) {
	chunks := batch.Chunk(userIDs, m.cfg.BatchSize)
	parts := make([]map[string]*models.Account, len(chunks))

	err := batch.Run(ctx, chunks, m.cfg.Parallelism, func(ctx context.Context, idx int, chunk []string) error {
		parts[idx] = m.fetchChunk(ctx, chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Single merge point: chunk keys are disjoint by construction, and the
	// repository sees one writer.
	results := make(map[string]*models.Account, len(userIDs))
	for _, part := range parts {
		for userID, account := range part {
			results[userID] = account
			if account != nil {
				m.repo.Put(account)
			}
		}
	}
	return results, nil
}

func (m *Manager) fetchChunk(ctx context.Context, chunk []string) map[string]*models.Account {
	// One entitlement call for the whole chunk. On failure every id in the
	// chunk degrades to "unknown" rather than aborting the fetch: mobile
	// status is advisory, unlike the identity listing below.
	flags, err := m.gw.MobileAccess(ctx, chunk)
	if err != nil {
		m.logger.Warn("mobile access lookup failed for chunk",
			slog.Int("chunk_size", len(chunk)), slog.Any("err", err))
		flags = nil
	}

	results := make(map[string]*models.Account, len(chunk))
	for _, userID := range chunk {
		var mobile *bool
		if flags != nil {
			enabled, ok := flags[userID]
			if ok {
				mobile = &enabled
			}
		}
		results[userID] = m.fetchUser(ctx, userID, mobile)
	}
	return results
}

// fetchUser resolves one user's record. Identity-listing and card-listing
// failures both null the record; processing continues with the next user.
func (m *Manager) fetchUser(ctx context.Context, userID string, mobile *bool) *models.Account {
	links, err := m.gw.LinkedAccounts(ctx, userID)
	if err != nil {
		m.logger.Warn("linked accounts lookup failed",
			slog.String("user_id", userID), slog.Any("err", err))
		return nil
	}

	account := &models.Account{
		UserID:       userID,
		MobileAccess: mobile,
		Cards:        []*models.Card{},
	}
	for _, link := range links {
		switch link.ProviderID {
		case provider.ProviderPaymentRail:
			if link.InternalID != "" {
				account.ActiveRails.Add(link.InternalID)
			}
		case provider.ProviderCardProcessor:
			account.ExternalAccountID = link.InternalID
		}
	}

	if !account.Linked() {
		// No card-processor account: nothing to list, cards stay empty.
		return account
	}

	cards, err := m.gw.Cards(ctx, account.ExternalAccountID)
	if err != nil {
		m.logger.Warn("card lookup failed",
			slog.String("user_id", userID),
			slog.String("external_account_id", account.ExternalAccountID),
			slog.Any("err", err))
		return nil
	}
	account.Cards = cards
	return account
}

// FreezeCard moves the card to FROZEN. It reports whether the change stuck;
// on failure the status is unchanged.
func (m *Manager) FreezeCard(ctx context.Context, card *models.Card) bool {
	return m.setCardStatus(ctx, card, models.StatusFrozen)
}

// FreezePermanentCard moves the card to FROZEN_PERMANENT.
func (m *Manager) FreezePermanentCard(ctx context.Context, card *models.Card) bool {
	return m.setCardStatus(ctx, card, models.StatusFrozenPermanent)
}

// ActivateCard moves the card to ACTIVE.
func (m *Manager) ActivateCard(ctx context.Context, card *models.Card) bool {
	return m.setCardStatus(ctx, card, models.StatusActive)
}

// DeleteCard removes a virtual card; physical cards cannot be deleted.
func (m *Manager) DeleteCard(ctx context.Context, card *models.Card) bool {
	if card.Type != models.CardTypeVirtual {
		m.logger.Warn("refusing to delete non-virtual card",
			slog.String("card_id", card.ID), slog.String("card_type", string(card.Type)))
		return false
	}
	if err := m.gw.DeleteCard(ctx, card.ID); err != nil {
		m.logger.Warn("card delete failed",
			slog.String("card_id", card.ID), slog.Any("err", err))
		return false
	}
	card.Status = models.StatusCanceled
	return true
}

// CancelCard drives the card to its cancellation target: delete for virtual
// cards, permanent freeze for physical ones.
func (m *Manager) CancelCard(ctx context.Context, card *models.Card) bool {
	if card.Type == models.CardTypeVirtual {
		return m.DeleteCard(ctx, card)
	}
	return m.FreezePermanentCard(ctx, card)
}

func (m *Manager) setCardStatus(ctx context.Context, card *models.Card, target models.Status) bool {
	if err := m.gw.UpdateCardStatus(ctx, card.ID, target); err != nil {
		m.logger.Warn("card status change failed",
			slog.String("card_id", card.ID),
			slog.String("target", string(target)),
			slog.Any("err", err))
		return false
	}
	card.Status = target
	return true
}

// CancelAccount runs the fraud-response workflow against one record,
// mutating it in place: mobile revocation, payment-rail deactivation, card
// cancellation. Phases are independent and best-effort — a failure in one
// never blocks the others, and nothing is rolled back. Outcomes are read
// from the record's final field values.
func (m *Manager) CancelAccount(ctx context.Context, account *models.Account) {
	m.revokeMobile(ctx, account)
	m.deactivateRails(ctx, account)
	m.cancelCards(ctx, account)
}

func (m *Manager) revokeMobile(ctx context.Context, account *models.Account) {
	if account.MobileAccess == nil || !*account.MobileAccess {
		return
	}
	if err := m.gw.LockMobileAccess(ctx, account.UserID); err != nil {
		m.logger.Warn("mobile access revocation failed",
			slog.String("user_id", account.UserID), slog.Any("err", err))
		return
	}
	disabled := false
	account.MobileAccess = &disabled
}

func (m *Manager) deactivateRails(ctx context.Context, account *models.Account) {
	// Iterate a snapshot of the set: removals below must not skip or repeat
	// members.
	for _, railID := range account.ActiveRails.Values() {
		if err := m.gw.DeactivateRail(ctx, account.UserID, railID); err != nil {
			m.logger.Warn("rail deactivation failed",
				slog.String("user_id", account.UserID),
				slog.String("rail_id", railID),
				slog.Any("err", err))
			continue
		}
		account.ActiveRails.Remove(railID)
	}
}

func (m *Manager) cancelCards(ctx context.Context, account *models.Account) {
	for _, card := range account.ActiveCards() {
		m.CancelCard(ctx, card)
	}
}

// CancelAll runs CancelAccount over every stored record, optionally followed
// by a full re-fetch of the known user ids.
func (m *Manager) CancelAll(ctx context.Context, refresh bool) error {
	for _, account := range m.repo.List() {
		m.CancelAccount(ctx, account)
	}
	if refresh {
		return m.RefreshAll(ctx)
	}
	return nil
}

// RefreshAll re-fetches every user id currently in the repository.
func (m *Manager) RefreshAll(ctx context.Context) error {
	userIDs := m.repo.UserIDs()
	if len(userIDs) == 0 {
		m.logger.Info("nothing to refresh")
		return nil
	}
	_, err := m.FetchAccounts(ctx, userIDs)
	return err
}

// GetAccount returns the stored record for a user id.
func (m *Manager) GetAccount(userID string) (*models.Account, error) {
	return m.repo.Get(userID)
}

// Summaries derives the service overview for every stored record.
func (m *Manager) Summaries() []models.Summary {
	return m.repo.Summaries()
}
