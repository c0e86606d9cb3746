package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"            json:"id"`
	Username       string `gorm:"size:100;uniqueIndex;not null"       json:"username"`
	Email          string `gorm:"size:255;uniqueIndex;not null"       json:"email"`
	HashedPassword string `gorm:"not null"                            json:"-"`
	Role           string `gorm:"size:20;not null;default:user"       json:"role"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Product names are unique only by convention: the check happens in the
// catalog service before insert, there is no storage constraint.
type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string  `gorm:"size:100;index;not null"   json:"name"`
	Description string  `gorm:"size:255"                  json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	InStock     bool    `json:"in_stock"`
}
