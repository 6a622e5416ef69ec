package domain

import "time"

// Category classifies a commodity for milling and stock rules.
type Category string

const (
	CategoryPaddy     Category = "paddy"
	CategoryRice      Category = "rice"
	CategoryGunny     Category = "gunny"
	CategoryFRK       Category = "frk"
	CategoryByproduct Category = "byproduct"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPaddy, CategoryRice, CategoryGunny, CategoryFRK, CategoryByproduct:
		return true
	default:
		return false
	}
}

// Unit is the unit of measure stock quantities are tracked in.
type Unit string

const (
	UnitQuintal Unit = "quintal"
	UnitKg      Unit = "kg"
	UnitTon     Unit = "ton"
	UnitBag     Unit = "bag"
	UnitUnit    Unit = "unit"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitQuintal, UnitKg, UnitTon, UnitBag, UnitUnit:
		return true
	default:
		return false
	}
}

// Commodity is a catalog entry. Immutable once referenced by a ledger entry.
type Commodity struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Category  Category  `gorm:"type:text;not null;index" json:"category"`
	Unit      Unit      `gorm:"type:text;not null" json:"unit"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Commodity) TableName() string { return "commodities" }
