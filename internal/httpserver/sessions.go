package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"pharmacart/internal/repository/guestcart"
	cartsvc "pharmacart/internal/service/cart"
	"github.com/gin-gonic/gin"
)

// CartFactory builds the cart service for one identity. userID is nil
// on the guest path; guestKey names the guest-store document.
type CartFactory func(userID *string, guestKey string) *cartsvc.Service

// CartRegistry hands out one cart instance per active identity, so each
// identity's CartState has a single owner, like one tab owning one
// in-memory cart.
type CartRegistry struct {
	mu      sync.Mutex
	carts   map[string]*cartsvc.Service
	factory CartFactory
	logger  *log.Logger
}

func NewCartRegistry(factory CartFactory, logger *log.Logger) *CartRegistry {
	return &CartRegistry{
		carts:   make(map[string]*cartsvc.Service),
		factory: factory,
		logger:  logger,
	}
}

// ForUser returns the authenticated cart for userID, hydrating it from
// the remote store on first use.
func (r *CartRegistry) ForUser(ctx context.Context, userID string) (*cartsvc.Service, error) {
	return r.get(ctx, "user:"+userID, func() *cartsvc.Service {
		id := userID
		return r.factory(&id, "")
	})
}

// ForGuest returns the guest cart for guestID, hydrating it from the
// guest store on first use.
func (r *CartRegistry) ForGuest(ctx context.Context, guestID string) (*cartsvc.Service, error) {
	return r.get(ctx, "guest:"+guestID, func() *cartsvc.Service {
		return r.factory(nil, guestcart.Key(guestID))
	})
}

func (r *CartRegistry) get(ctx context.Context, key string, build func() *cartsvc.Service) (*cartsvc.Service, error) {
	r.mu.Lock()
	svc, ok := r.carts[key]
	if !ok {
		svc = build()
		r.carts[key] = svc
	}
	r.mu.Unlock()

	if !ok {
		if err := svc.Hydrate(ctx); err != nil {
			r.mu.Lock()
			delete(r.carts, key)
			r.mu.Unlock()
			return nil, err
		}
	}
	return svc, nil
}

// ClearUserCart clears the cart for userID. Invoked by the order-placed
// consumer after a successful order submission.
func (r *CartRegistry) ClearUserCart(userID string) {
	ctx := context.Background()
	svc, err := r.ForUser(ctx, userID)
	if err != nil {
		r.logger.Printf("order placed: load cart for %s: %v", userID, err)
		return
	}
	if err := svc.ClearCart(ctx); err != nil {
		r.logger.Printf("order placed: clear cart for %s: %v", userID, err)
	}
}

type identity struct {
	userID  *string
	guestID string
}

const identityCtxKey = "pharmacart/identity"

// guestResolver is the slice of the guest service the middleware needs.
type guestResolver interface {
	Lookup(token string) (string, error)
}

// identityMiddleware resolves the caller to an authenticated user or a
// guest session. X-User-ID is filled in by the auth gateway upstream;
// guests present the token issued by the guest-session endpoint.
func identityMiddleware(guests guestResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader("X-User-ID")); userID != "" {
			c.Set(identityCtxKey, identity{userID: &userID})
			c.Next()
			return
		}
		token := strings.TrimSpace(c.GetHeader("X-Guest-Token"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity; create a guest session first"})
			return
		}
		guestID, err := guests.Lookup(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired guest token"})
			return
		}
		c.Set(identityCtxKey, identity{guestID: guestID})
		c.Next()
	}
}

func identityFrom(c *gin.Context) identity {
	v, _ := c.Get(identityCtxKey)
	id, _ := v.(identity)
	return id
}

func cartFor(c *gin.Context, registry *CartRegistry) (*cartsvc.Service, bool) {
	id := identityFrom(c)
	var (
		svc *cartsvc.Service
		err error
	)
	if id.userID != nil {
		svc, err = registry.ForUser(c.Request.Context(), *id.userID)
	} else {
		svc, err = registry.ForGuest(c.Request.Context(), id.guestID)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "cart is temporarily unavailable"})
		return nil, false
	}
	return svc, true
}
