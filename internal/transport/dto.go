package transport

import "github.com/Skotchmaster/product_api/internal/models"

// CreateProductRequest is the full product payload used by create and by
// PUT. Pointer fields let validation tell a missing field from a zero value.
type CreateProductRequest struct {
	Name        *string  `json:"name"        validate:"required,max=100"`
	Description *string  `json:"description" validate:"required,max=255"`
	Price       *float64 `json:"price"       validate:"required"`
	Quantity    *int     `json:"quantity"    validate:"required"`
	InStock     *bool    `json:"in_stock"    validate:"required"`
}

func (r CreateProductRequest) Apply(p *models.Product) {
	p.Name = *r.Name
	p.Description = *r.Description
	p.Price = *r.Price
	p.Quantity = *r.Quantity
	p.InStock = *r.InStock
}

type PatchProductRequest struct {
	Name        *string  `json:"name"        validate:"omitempty,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=255"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
	InStock     *bool    `json:"in_stock"`
}

// Apply copies only the fields present in the request.
func (r PatchProductRequest) Apply(p *models.Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Quantity != nil {
		p.Quantity = *r.Quantity
	}
	if r.InStock != nil {
		p.InStock = *r.InStock
	}
}

// ProductOut is a single product. serial_no is only set on list responses.
type ProductOut struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	InStock     bool    `json:"in_stock"`
	SerialNo    *int    `json:"serial_no"`
}

func NewProductOut(p *models.Product) ProductOut {
	return ProductOut{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		InStock:     p.InStock,
	}
}

type ProductListItem struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	InStock     bool    `json:"in_stock"`
	SerialNo    int     `json:"serial_no"`
}

func NewProductListItem(p *models.Product, serialNo int) ProductListItem {
	return ProductListItem{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		InStock:     p.InStock,
		SerialNo:    serialNo,
	}
}

type SignupRequest struct {
	Username string `query:"username" form:"username" json:"username" validate:"required,max=100"`
	Email    string `query:"email"    form:"email"    json:"email"    validate:"required,email,max=255"`
	Password string `query:"password" form:"password" json:"password" validate:"required"`
}

type LoginRequest struct {
	Username  string `form:"username"   validate:"required"`
	Password  string `form:"password"   validate:"required"`
	GrantType string `form:"grant_type" validate:"omitempty,eq=password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}
