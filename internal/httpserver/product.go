package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/service"
	"github.com/Skotchmaster/product_api/internal/transport"
	"github.com/Skotchmaster/product_api/internal/util"
)

const (
	msgProductNotFound  = "Product not found"
	msgDuplicateProduct = "Product with this name already exists"
	msgProductDeleted   = "Product deleted successfully"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.CreateProductRequest
	if err := bindBody(c, &req); err != nil {
		l.Warn("product_create_error", "status", 422, "reason", "invalid body", "error", err)
		return err
	}

	product, err := h.Svc.Create(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateName) {
			l.Warn("product_create_error", "status", 400, "reason", "duplicate name", "name", *req.Name)
			return echo.NewHTTPError(http.StatusBadRequest, msgDuplicateProduct)
		}
		l.Error("product_create_error", "status", 500, "error", err)
		return err
	}

	l.Info("product_created", "product_id", product.ID)
	return c.JSON(http.StatusOK, transport.NewProductOut(product))
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page, err := util.ParsePositive(c.QueryParam("page"), util.DefaultPage)
	if err != nil {
		l.Warn("product_list_error", "status", 422, "reason", "bad page", "page", c.QueryParam("page"))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "page: "+err.Error())
	}
	size, err := util.ParsePositive(c.QueryParam("limit"), util.DefaultLimit)
	if err != nil {
		l.Warn("product_list_error", "status", 422, "reason", "bad limit", "limit", c.QueryParam("limit"))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "limit: "+err.Error())
	}

	offset, limit := util.Calculate(page, size)
	items, err := h.Svc.List(ctx, offset, limit)
	if err != nil {
		l.Error("product_list_error", "status", 500, "error", err)
		return err
	}

	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	q := c.QueryParam("q")
	items, err := h.Svc.SearchProducts(ctx, q)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("product_search_error", "status", 422, "reason", "empty query")
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "q: field required")
		}
		l.Error("product_search_error", "status", 500, "error", err)
		return err
	}

	out := make([]transport.ProductOut, 0, len(items))
	for i := range items {
		out = append(out, transport.NewProductOut(&items[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := productID(c)
	if err != nil {
		l.Warn("product_get_error", "status", 422, "reason", "id is not an integer", "id", c.Param("id"))
		return err
	}

	product, err := h.Svc.Get(ctx, id)
	if err != nil {
		return productError(l, "product_get_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewProductOut(product))
}

func (h *CatalogHTTP) ReplaceProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.replace")

	id, err := productID(c)
	if err != nil {
		l.Warn("product_replace_error", "status", 422, "reason", "id is not an integer", "id", c.Param("id"))
		return err
	}

	var req transport.CreateProductRequest
	if err := bindBody(c, &req); err != nil {
		l.Warn("product_replace_error", "status", 422, "reason", "invalid body", "error", err)
		return err
	}

	product, err := h.Svc.Replace(ctx, id, req)
	if err != nil {
		return productError(l, "product_replace_error", err)
	}

	l.Info("product_replaced", "product_id", id)
	return c.JSON(http.StatusOK, transport.NewProductOut(product))
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	id, err := productID(c)
	if err != nil {
		l.Warn("product_patch_error", "status", 422, "reason", "id is not an integer", "id", c.Param("id"))
		return err
	}

	var req transport.PatchProductRequest
	if err := bindBody(c, &req); err != nil {
		l.Warn("product_patch_error", "status", 422, "reason", "invalid body", "error", err)
		return err
	}

	product, err := h.Svc.Patch(ctx, id, req)
	if err != nil {
		return productError(l, "product_patch_error", err)
	}

	l.Info("product_patched", "product_id", id)
	return c.JSON(http.StatusOK, transport.NewProductOut(product))
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := productID(c)
	if err != nil {
		l.Warn("product_delete_error", "status", 422, "reason", "id is not an integer", "id", c.Param("id"))
		return err
	}

	if err := h.Svc.Delete(ctx, id); err != nil {
		return productError(l, "product_delete_error", err)
	}

	l.Info("product_deleted", "product_id", id)
	return c.JSON(http.StatusOK, transport.DetailResponse{Detail: msgProductDeleted})
}

func productID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "id: must be an integer")
	}
	return uint(id), nil
}

func productError(l *slog.Logger, event string, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		l.Warn(event, "status", 404, "reason", "product not found")
		return echo.NewHTTPError(http.StatusNotFound, msgProductNotFound)
	}
	l.Error(event, "status", 500, "error", err)
	return err
}

// bindBody decodes the request body into req and runs the validator. Both
// failures are reported as 422.
func bindBody(c echo.Context, req any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body").SetInternal(err)
	}
	return c.Validate(req)
}
