package models

import (
	"time"

	"loankeeper/core/status"
)

// Item categories.
const (
	CategoryBook      = "BOOK"
	CategoryEquipment = "EQUIPMENT"
)

// ValidCategory reports whether c is a known item category.
func ValidCategory(c string) bool {
	return c == CategoryBook || c == CategoryEquipment
}

// Item is a single lendable catalog entry.
//
// Available is a denormalized mirror of ReservationStatus == AVAILABLE,
// kept in sync by the status engine on every loan/reservation write.
type Item struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	Serial            string            `gorm:"size:120;uniqueIndex;not null" json:"serial"`
	Name              string            `gorm:"size:200;not null" json:"name"`
	Category          string            `gorm:"size:20;not null" json:"category"`
	ServiceCategory   string            `gorm:"size:100" json:"serviceCategory"`
	ReservationStatus status.ItemStatus `gorm:"size:20;not null;default:'AVAILABLE'" json:"reservationStatus"`
	Available         bool              `gorm:"not null;default:true" json:"available"`
	ReservedBy        *string           `gorm:"type:varchar(36)" json:"reservedBy,omitempty"`
	ReservedAt        *time.Time        `json:"reservedAt,omitempty"`
	PhotoObject       string            `gorm:"size:255" json:"photoObject,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (Item) TableName() string { return "items" }
