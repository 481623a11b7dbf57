package cart

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pharmacart/internal/domain"
)

// Service is the cart façade consumed by the storefront API. One
// instance owns one CartState, exactly as one browser tab owns one
// in-memory cart. Routing per mutation is decided by identity presence:
// an authenticated user's cart lives in the remote line store and the
// in-memory state is a read-through cache of it; a guest's cart lives in
// the guest store and the reducer is authoritative.
type Service struct {
	mu sync.Mutex

	userID   *string
	guestKey string

	state       domain.CartState
	remoteLines []domain.RemoteLine
	acked       map[string]bool

	remote   remoteStore
	guests   guestStore
	notifier Notifier
	logger   *log.Logger

	pricing       Pricing
	remoteTimeout time.Duration
	now           func() time.Time
}

type remoteStore interface {
	ListForUser(ctx context.Context, userID string) ([]domain.RemoteLine, error)
	UpsertQuantity(ctx context.Context, userID, productID string, delta int) error
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Delete(ctx context.Context, lineID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type guestStore interface {
	Load(key string) ([]domain.CartLine, error)
	Save(key string, lines []domain.CartLine) error
	Clear(key string) error
}

// Notification is the single outcome emitted for every mutation attempt.
type Notification struct {
	Identity  string `json:"identity"`
	Action    string `json:"action"`
	ProductID string `json:"productId,omitempty"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// Notifier delivers mutation outcomes to the UI channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the service log. Used when no
// broker is configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) {
	l.Logger.Printf("notify identity=%s action=%s product=%s success=%t: %s",
		n.Identity, n.Action, n.ProductID, n.Success, n.Message)
}

// Options carries the tunables shared by every cart instance.
type Options struct {
	Pricing       Pricing
	RemoteTimeout time.Duration
}

// New builds a cart for one identity. userID selects the remote path
// when non-nil; guestKey names the guest-store document otherwise.
func New(userID *string, guestKey string, remote remoteStore, guests guestStore, notifier Notifier, logger *log.Logger, opts Options) *Service {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 5 * time.Second
	}
	s := &Service{
		userID:        userID,
		guestKey:      guestKey,
		acked:         make(map[string]bool),
		remote:        remote,
		guests:        guests,
		notifier:      notifier,
		logger:        logger,
		pricing:       opts.Pricing,
		remoteTimeout: opts.RemoteTimeout,
		now:           time.Now,
	}
	s.state.Totals = calculateTotals(nil, 0, opts.Pricing)
	return s
}

func (s *Service) authenticated() bool {
	return s.userID != nil
}

// Hydrate loads the authoritative store into the in-memory state. Called
// once after construction and again whenever the UI wants a re-sync. A
// malformed guest document is treated as an empty cart, never an error.
func (s *Service) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authenticated() {
		return s.refreshRemote(ctx)
	}

	lines, err := s.guests.Load(s.guestKey)
	if err != nil {
		s.logger.Printf("guest cart %s unreadable, starting empty: %v", s.guestKey, err)
		lines = nil
	}
	s.state = reduce(s.state, action{typ: actionReplaceLines, lines: lines}, s.pricing, s.now())
	return nil
}

// AddItem adds quantity units of product, clamped to its stock limit.
// Products flagged out of stock are rejected before any state change.
func (s *Service) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		quantity = 1
	}
	if !product.InStock || product.StockLimit() == 0 {
		s.notify(ctx, "addItem", product.ID, false, fmt.Sprintf("%s is out of stock", product.Name))
		return domain.ErrOutOfStock
	}

	if s.authenticated() {
		err := s.withRemote(ctx, func(ctx context.Context) error {
			if err := s.remote.UpsertQuantity(ctx, *s.userID, product.ID, quantity); err != nil {
				return fmt.Errorf("upsert line: %w", err)
			}
			return s.refreshRemote(ctx)
		})
		if err != nil {
			s.notify(ctx, "addItem", product.ID, false, "could not add item to cart")
			return err
		}
		s.notify(ctx, "addItem", product.ID, true, fmt.Sprintf("%s added to cart", product.Name))
		return nil
	}

	prev := s.state
	s.state = reduce(s.state, action{typ: actionAddLine, product: product, quantity: quantity}, s.pricing, s.now())
	if err := s.guests.Save(s.guestKey, s.state.Lines); err != nil {
		s.state = prev
		s.notify(ctx, "addItem", product.ID, false, "could not add item to cart")
		return fmt.Errorf("persist guest cart: %w", err)
	}
	s.notify(ctx, "addItem", product.ID, true, fmt.Sprintf("%s added to cart", product.Name))
	return nil
}

// RemoveItem deletes the line holding productID. Removing a product that
// is not in the cart is a no-op, reported as success.
func (s *Service) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeItem(ctx, productID, "removeItem")
}

func (s *Service) removeItem(ctx context.Context, productID, actionName string) error {
	if s.authenticated() {
		err := s.withRemote(ctx, func(ctx context.Context) error {
			line, ok := s.remoteLineFor(productID)
			if !ok {
				return nil
			}
			if err := s.remote.Delete(ctx, line.ID); err != nil {
				return fmt.Errorf("delete line: %w", err)
			}
			return s.refreshRemote(ctx)
		})
		if err != nil {
			s.notify(ctx, actionName, productID, false, "could not remove item from cart")
			return err
		}
		s.notify(ctx, actionName, productID, true, "item removed from cart")
		return nil
	}

	prev := s.state
	s.state = reduce(s.state, action{typ: actionRemoveLine, productID: productID}, s.pricing, s.now())
	if err := s.guests.Save(s.guestKey, s.state.Lines); err != nil {
		s.state = prev
		s.notify(ctx, actionName, productID, false, "could not remove item from cart")
		return fmt.Errorf("persist guest cart: %w", err)
	}
	s.notify(ctx, actionName, productID, true, "item removed from cart")
	return nil
}

// UpdateQuantity sets the quantity for productID, clamped to the stock
// limit. A quantity of zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.removeItem(ctx, productID, "updateQuantity")
	}

	if s.authenticated() {
		err := s.withRemote(ctx, func(ctx context.Context) error {
			line, ok := s.remoteLineFor(productID)
			if !ok {
				return domain.ErrNotFound
			}
			if err := s.remote.UpdateQuantity(ctx, line.ID, quantity); err != nil {
				return fmt.Errorf("update line: %w", err)
			}
			return s.refreshRemote(ctx)
		})
		if err != nil {
			s.notify(ctx, "updateQuantity", productID, false, "could not update quantity")
			return err
		}
		s.notify(ctx, "updateQuantity", productID, true, "quantity updated")
		return nil
	}

	if findLine(s.state.Lines, productID) < 0 {
		s.notify(ctx, "updateQuantity", productID, false, "item is not in the cart")
		return domain.ErrNotFound
	}
	prev := s.state
	s.state = reduce(s.state, action{typ: actionSetQuantity, productID: productID, quantity: quantity}, s.pricing, s.now())
	if err := s.guests.Save(s.guestKey, s.state.Lines); err != nil {
		s.state = prev
		s.notify(ctx, "updateQuantity", productID, false, "could not update quantity")
		return fmt.Errorf("persist guest cart: %w", err)
	}
	s.notify(ctx, "updateQuantity", productID, true, "quantity updated")
	return nil
}

// ClearCart removes every line. The discount survives a clear; totals
// recompute to their zero-item values.
func (s *Service) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authenticated() {
		err := s.withRemote(ctx, func(ctx context.Context) error {
			if err := s.remote.DeleteAllForUser(ctx, *s.userID); err != nil {
				return fmt.Errorf("delete all lines: %w", err)
			}
			return s.refreshRemote(ctx)
		})
		if err != nil {
			s.notify(ctx, "clearCart", "", false, "could not clear cart")
			return err
		}
		s.notify(ctx, "clearCart", "", true, "cart cleared")
		return nil
	}

	prev := s.state
	s.state = reduce(s.state, action{typ: actionClear}, s.pricing, s.now())
	if err := s.guests.Clear(s.guestKey); err != nil {
		s.state = prev
		s.notify(ctx, "clearCart", "", false, "could not clear cart")
		return fmt.Errorf("clear guest cart: %w", err)
	}
	s.notify(ctx, "clearCart", "", true, "cart cleared")
	return nil
}

// ToggleCart flips the cart drawer. UI-only, never touches a store.
func (s *Service) ToggleCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduce(s.state, action{typ: actionToggleOpen}, s.pricing, s.now())
}

// SetCartOpen sets the cart drawer visibility. UI-only.
func (s *Service) SetCartOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduce(s.state, action{typ: actionSetOpen, open: open}, s.pricing, s.now())
}

// ApplyDiscount sets the session discount. Always local: the discount is
// a session concept and is not persisted remotely.
func (s *Service) ApplyDiscount(ctx context.Context, amountCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduce(s.state, action{typ: actionApplyDiscount, discountCents: amountCents}, s.pricing, s.now())
	s.notify(ctx, "applyDiscount", "", true, "discount applied")
}

// AcknowledgePrescription marks the prescription requirement for
// productID as satisfied. The flag is kept as an overlay on the remote
// path so it survives refreshes; for guests it is persisted with the line.
func (s *Service) AcknowledgePrescription(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	prevAcked := s.acked[productID]
	s.acked[productID] = true
	s.state = reduce(s.state, action{typ: actionAckPrescription, productID: productID}, s.pricing, s.now())

	if !s.authenticated() {
		if err := s.guests.Save(s.guestKey, s.state.Lines); err != nil {
			s.state = prev
			if !prevAcked {
				delete(s.acked, productID)
			}
			s.notify(ctx, "acknowledgePrescription", productID, false, "could not save acknowledgement")
			return fmt.Errorf("persist guest cart: %w", err)
		}
	}
	s.notify(ctx, "acknowledgePrescription", productID, true, "prescription requirement acknowledged")
	return nil
}

// State returns a copy of the current cart state.
func (s *Service) State() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Lines = append([]domain.CartLine(nil), s.state.Lines...)
	return out
}

// RemoteLines returns the last fetched remote rows, including their
// expiry hints. Empty on the guest path.
func (s *Service) RemoteLines() []domain.RemoteLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RemoteLine(nil), s.remoteLines...)
}

// refreshRemote replaces the in-memory view with the remote store's
// current line list. Callers hold s.mu.
func (s *Service) refreshRemote(ctx context.Context) error {
	rows, err := s.remote.ListForUser(ctx, *s.userID)
	if err != nil {
		return fmt.Errorf("list lines: %w", err)
	}
	s.remoteLines = rows
	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		line := row.ToCartLine()
		if s.acked[line.ProductID] {
			line.PrescriptionAcknowledged = true
		}
		lines = append(lines, line)
	}
	s.state = reduce(s.state, action{typ: actionReplaceLines, lines: lines}, s.pricing, s.now())
	return nil
}

func (s *Service) remoteLineFor(productID string) (domain.RemoteLine, bool) {
	for _, row := range s.remoteLines {
		if row.ProductID == productID {
			return row, true
		}
	}
	return domain.RemoteLine{}, false
}

func (s *Service) withRemote(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) notify(ctx context.Context, actionName, productID string, success bool, message string) {
	identity := s.guestKey
	if s.authenticated() {
		identity = *s.userID
	}
	s.notifier.Notify(ctx, Notification{
		Identity:  identity,
		Action:    actionName,
		ProductID: productID,
		Success:   success,
		Message:   message,
	})
}
