package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
	itemKeyPrefix      = "item:"
)

// ShopItem is a cosmetic that can be bought with coins.
type ShopItem struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Price int64  `json:"price"`
}

// Catalog indexes shop items by code.
type Catalog map[string]ShopItem

// DefaultCatalog lists the items sold in the shop.
var DefaultCatalog = Catalog{
	"theme-forest":    {Code: "theme-forest", Name: "Forest theme", Kind: "theme", Price: 5},
	"theme-ocean":     {Code: "theme-ocean", Name: "Ocean theme", Kind: "theme", Price: 5},
	"theme-night":     {Code: "theme-night", Name: "Night theme", Kind: "theme", Price: 8},
	"timer-classic":   {Code: "timer-classic", Name: "Classic timer", Kind: "timer_skin", Price: 3},
	"timer-tomato":    {Code: "timer-tomato", Name: "Tomato timer", Kind: "timer_skin", Price: 4},
	"timer-hourglass": {Code: "timer-hourglass", Name: "Hourglass timer", Kind: "timer_skin", Price: 10},
}

// Items returns every item ordered by kind, price and code.
func (c Catalog) Items() []ShopItem {
	items := make([]ShopItem, 0, len(c))
	for _, item := range c {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		if items[i].Price != items[j].Price {
			return items[i].Price < items[j].Price
		}
		return items[i].Code < items[j].Code
	})
	return items
}

// WalletService exposes balances, ledger history and purchases.
type WalletService struct {
	users       UserReader
	ledger      LedgerStore
	catalog     Catalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewWalletService constructs a WalletService selling from catalog. A nil
// catalog selects DefaultCatalog.
func NewWalletService(users UserReader, ledger LedgerStore, catalog Catalog, idGenerator func() string, now func() time.Time) *WalletService {
	return NewWalletServiceWithLogger(users, ledger, catalog, idGenerator, now, nil)
}

// NewWalletServiceWithLogger constructs a WalletService with a specified logger.
func NewWalletServiceWithLogger(users UserReader, ledger LedgerStore, catalog Catalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WalletService {
	if catalog == nil {
		catalog = DefaultCatalog
	}
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &WalletService{
		users:       users,
		ledger:      ledger,
		catalog:     catalog,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *WalletService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "WalletService", operation, attrs...)
}

func (s *WalletService) user(ctx context.Context, principal Principal) (persistence.User, error) {
	if s == nil || s.users == nil || s.ledger == nil {
		return persistence.User{}, fmt.Errorf("wallet dependencies not configured")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return persistence.User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.User{}, ErrUserNotFound
	}
	return user, err
}

// Catalog returns the items for sale.
func (s *WalletService) Catalog() []ShopItem {
	return s.catalog.Items()
}

// Balance returns the cached coin balance.
func (s *WalletService) Balance(ctx context.Context, principal Principal) (int64, error) {
	user, err := s.user(ctx, principal)
	if err != nil {
		return 0, err
	}
	return user.CoinBalance, nil
}

// Ledger returns the most recent entries, newest first.
func (s *WalletService) Ledger(ctx context.Context, principal Principal, limit int) ([]persistence.LedgerEntry, error) {
	if _, err := s.user(ctx, principal); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	entries, err := s.ledger.ListEntries(ctx, principal.UserID, limit)
	return entries, mapRepoError(err)
}

// Purchase debits the item's price. Each item can be bought once.
func (s *WalletService) Purchase(ctx context.Context, principal Principal, itemCode string) (result PurchaseResult, err error) {
	itemCode = strings.TrimSpace(itemCode)
	logger := s.loggerWith(ctx, "Purchase", "principal_id", principal.UserID, "item", itemCode)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "purchase failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "purchase completed", "balance", result.Balance)
	}()

	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	item, ok := s.catalog[itemCode]
	if !ok {
		err = newValidationError("item", fmt.Sprintf("unknown item %q", itemCode))
		return
	}

	now := s.now().UTC()
	key := itemKeyPrefix + item.Code
	code := item.Code
	entry := persistence.LedgerEntry{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Amount:    -item.Price,
		Reason:    ReasonPurchase,
		EntryDay:  calendar.DateOf(now, userLocation(user, time.UTC)),
		DedupeKey: &key,
		Reference: &code,
		CreatedAt: now,
	}

	var appended persistence.AppendResult
	appended, err = s.ledger.AppendEntry(ctx, entry)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			err = fmt.Errorf("%w: %v", ErrLedgerWriteConflict, err)
			return
		}
		err = mapLedgerError(err)
		return
	}
	if !appended.Inserted {
		err = ErrAlreadyOwned
		return
	}
	result = PurchaseResult{Item: item, Entry: appended.Entry, Balance: appended.Balance}
	return
}

// Owned reports the item codes the principal has bought.
func (s *WalletService) Owned(ctx context.Context, principal Principal) ([]string, error) {
	if _, err := s.user(ctx, principal); err != nil {
		return nil, err
	}
	owned := make([]string, 0)
	for _, item := range s.catalog.Items() {
		has, err := s.ledger.HasEntry(ctx, principal.UserID, ReasonPurchase, itemKeyPrefix+item.Code)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if has {
			owned = append(owned, item.Code)
		}
	}
	return owned, nil
}

// Reconcile compares the cached balance with the ledger sum.
func (s *WalletService) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	user, err := s.user(ctx, Principal{UserID: userID})
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := s.ledger.SumEntries(ctx, user.ID)
	if err != nil {
		return Reconciliation{}, mapRepoError(err)
	}
	rec := Reconciliation{UserID: user.ID, CachedBalance: user.CoinBalance, LedgerSum: sum}
	if !rec.Consistent() {
		s.loggerWith(ctx, "Reconcile", "user_id", user.ID).WarnContext(ctx, "balance drift detected",
			"cached_balance", rec.CachedBalance,
			"ledger_sum", rec.LedgerSum,
		)
	}
	return rec, nil
}
