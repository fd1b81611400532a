package model

import "gorm.io/gorm"

// Drug is one inventory entry. Quantity is the sole stock signal and is only
// decremented through the dispensing workflow.
type Drug struct {
	gorm.Model
	Name        string  `json:"name" gorm:"not null"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity" gorm:"not null;default:0"`
	Price       float64 `json:"price" gorm:"not null;default:0"`
}
