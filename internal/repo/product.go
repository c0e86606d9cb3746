package repo

import (
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/models"
)

func (s *Session) GetProduct(id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Session) ListProducts(offset, limit int) ([]models.Product, error) {
	items := make([]models.Product, 0, limit)
	if err := s.db.Model(&models.Product{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

const matchExpr = `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`

// SearchProducts matches q as a literal, case-insensitive substring of name
// or description.
func (s *Session) SearchProducts(q string) ([]models.Product, error) {
	pattern := likePattern(q)

	var items []models.Product
	if err := s.db.Model(&models.Product{}).
		Where(matchExpr, pattern, pattern).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SearchProductsIn applies the same match as SearchProducts, restricted to
// ids. Ids that no longer exist or no longer match are dropped.
func (s *Session) SearchProductsIn(ids []uint, q string) ([]models.Product, error) {
	items := []models.Product{}
	if len(ids) == 0 {
		return items, nil
	}
	pattern := likePattern(q)
	if err := s.db.Model(&models.Product{}).
		Where("id IN ?", ids).
		Where(matchExpr, pattern, pattern).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// EachProductBatch walks every product in id order, batch rows at a time.
func (s *Session) EachProductBatch(batch int, fn func([]models.Product) error) error {
	var lastID uint
	for {
		var items []models.Product
		if err := s.db.Where("id > ?", lastID).Order("id ASC").Limit(batch).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		if err := fn(items); err != nil {
			return err
		}
		lastID = items[len(items)-1].ID
	}
}

func (s *Session) ProductNameExists(name string) (bool, error) {
	var n int64
	if err := s.db.Model(&models.Product{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Session) CreateProduct(prod *models.Product) error {
	return s.db.Create(prod).Error
}

// SaveProduct writes every column, including zero values.
func (s *Session) SaveProduct(prod *models.Product) error {
	return s.db.Save(prod).Error
}

func (s *Session) DeleteProduct(id uint) error {
	res := s.db.Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func likePattern(q string) string {
	return "%" + EscapeLike(strings.ToLower(q)) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
