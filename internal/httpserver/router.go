package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/middleware/auth"
	"github.com/Skotchmaster/product_api/internal/tokens"
	"github.com/Skotchmaster/product_api/internal/transport"
)

const homeMessage = "Hello from the product catalog API"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	CatalogHandler *CatalogHTTP
	AuthHandler    *AuthHTTP
	Tokens         *tokens.Service
	DB             Pinger
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, transport.MessageResponse{Message: homeMessage})
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	e.POST("/signup", d.AuthHandler.Signup)
	e.POST("/login", d.AuthHandler.Login)

	requireAuth := auth.RequireAuth(d.Tokens, d.AuthHandler.Svc)

	e.GET("/profile", d.AuthHandler.Profile, requireAuth)

	products := e.Group("/products", requireAuth)
	products.GET("", d.CatalogHandler.ListProducts)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.POST("", d.CatalogHandler.CreateProduct, auth.RequireAdmin)
	products.PUT("/:id", d.CatalogHandler.ReplaceProduct, auth.RequireAdmin)
	products.PATCH("/:id", d.CatalogHandler.PatchProduct, auth.RequireAdmin)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct, auth.RequireAdmin)
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := d.DB.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("readiness_failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.NoContent(http.StatusOK)
}
