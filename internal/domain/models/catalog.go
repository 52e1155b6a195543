package models

import "github.com/shopspring/decimal"

// Category groups menu items and carries the GST rate applied to their lines.
type Category struct {
	ID      int64
	Name    string
	GSTRate decimal.Decimal // percent
}

// MenuItem is a sellable dish.
type MenuItem struct {
	ID         int64
	CategoryID int64
	Name       string
	Available  bool
}

// ItemSize is a priced variant of a menu item.
type ItemSize struct {
	ID        int64
	ItemID    int64
	Name      string
	Price     decimal.Decimal
	Available bool
}

// AddOn is an optional extra attached to a menu item.
type AddOn struct {
	ID        int64
	ItemID    int64
	Name      string
	Price     decimal.Decimal
	Available bool
}

// ItemSizeDetail is the joined view the order flow prices against: the size,
// its parent item and the category tax rate, fetched in one query.
type ItemSizeDetail struct {
	SizeID        int64
	ItemID        int64
	CategoryID    int64
	ItemName      string
	SizeName      string
	Price         decimal.Decimal
	GSTRate       decimal.Decimal // percent
	ItemAvailable bool
	SizeAvailable bool
}
