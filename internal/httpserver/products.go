package httpserver

import (
	"context"
	"errors"
	"net/http"

	"pharmacart/internal/domain"
	"github.com/gin-gonic/gin"
)

type productGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type productLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

func listProductsHandler(products productLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := products.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
			return
		}
		if list == nil {
			list = []domain.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"products": list})
	}
}

func getProductHandler(products productGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
