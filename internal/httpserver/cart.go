package httpserver

import (
	"errors"
	"net/http"
	"time"

	"pharmacart/internal/domain"
	cartsvc "pharmacart/internal/service/cart"
	"github.com/gin-gonic/gin"
)

// Lines within this window of their server-side expiry are flagged so
// the UI can render an "expires soon" hint.
const expirySoonWindow = 24 * time.Hour

type cartLineResponse struct {
	ProductID                string         `json:"productId"`
	Product                  domain.Product `json:"product"`
	Quantity                 int            `json:"quantity"`
	AddedAt                  time.Time      `json:"addedAt"`
	PrescriptionAcknowledged bool           `json:"prescriptionAcknowledged"`
	ExpiresAt                *time.Time     `json:"expiresAt,omitempty"`
	ExpiresSoon              bool           `json:"expiresSoon,omitempty"`
}

type cartResponse struct {
	Lines         []cartLineResponse `json:"lines"`
	IsOpen        bool               `json:"isOpen"`
	DiscountCents int64              `json:"discountCents"`
	Totals        domain.Totals      `json:"totals"`
}

func toCartResponse(svc *cartsvc.Service) cartResponse {
	state := svc.State()
	expiries := make(map[string]time.Time)
	for _, row := range svc.RemoteLines() {
		expiries[row.ProductID] = row.ExpiresAt
	}

	lines := make([]cartLineResponse, 0, len(state.Lines))
	now := time.Now()
	for _, line := range state.Lines {
		resp := cartLineResponse{
			ProductID:                line.ProductID,
			Product:                  line.Product,
			Quantity:                 line.Quantity,
			AddedAt:                  line.AddedAt,
			PrescriptionAcknowledged: line.PrescriptionAcknowledged,
		}
		if expiry, ok := expiries[line.ProductID]; ok {
			e := expiry
			resp.ExpiresAt = &e
			resp.ExpiresSoon = expiry.Sub(now) <= expirySoonWindow
		}
		lines = append(lines, resp)
	}
	return cartResponse{
		Lines:         lines,
		IsOpen:        state.IsOpen,
		DiscountCents: state.DiscountCents,
		Totals:        state.Totals,
	}
}

type addItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type discountRequest struct {
	AmountCents int64 `json:"amountCents"`
}

type openRequest struct {
	Open bool `json:"open"`
}

func getCartHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func addItemHandler(registry *CartRegistry, products productGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "productId required"})
			return
		}
		if req.Quantity <= 0 {
			req.Quantity = 1
		}

		p, err := products.GetByID(c.Request.Context(), req.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
			return
		}

		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		if err := svc.AddItem(c.Request.Context(), *p, req.Quantity); err != nil {
			writeCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func updateQuantityHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity required"})
			return
		}
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		if err := svc.UpdateQuantity(c.Request.Context(), c.Param("productId"), req.Quantity); err != nil {
			writeCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func removeItemHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		if err := svc.RemoveItem(c.Request.Context(), c.Param("productId")); err != nil {
			writeCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func clearCartHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		if err := svc.ClearCart(c.Request.Context()); err != nil {
			writeCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func applyDiscountHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discountRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.AmountCents < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "non-negative amountCents required"})
			return
		}
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		svc.ApplyDiscount(c.Request.Context(), req.AmountCents)
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func setCartOpenHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req openRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open flag required"})
			return
		}
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		svc.SetCartOpen(req.Open)
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func toggleCartHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		svc.ToggleCart()
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

func ackPrescriptionHandler(registry *CartRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := cartFor(c, registry)
		if !ok {
			return
		}
		if err := svc.AcknowledgePrescription(c.Request.Context(), c.Param("productId")); err != nil {
			writeCartError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(svc))
	}
}

type guestSessionIssuer interface {
	Issue() (token, guestID string, err error)
	TTLSeconds() int
}

func createGuestSessionHandler(guests guestSessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, guestID, err := guests.Issue()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create guest session"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"token":     token,
			"guestId":   guestID,
			"expiresIn": guests.TTLSeconds(),
		})
	}
}

func writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": "product is out of stock"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cart line not found"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "cart store unavailable, please retry"})
	}
}
