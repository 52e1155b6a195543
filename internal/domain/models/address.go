package models

// Address is a delivery address. Orders store a JSON snapshot of it at
// creation time, so later edits or deletion never affect placed orders.
type Address struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"-"`
	Label   string `json:"label"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}
