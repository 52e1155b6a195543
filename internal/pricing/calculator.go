package pricing

import "github.com/shopspring/decimal"

// Line is one cart line as the calculator sees it: the chosen size price,
// the selected add-on prices, the quantity and the tax rate of the item's
// category. GST is per-line because categories carry different rates.
type Line struct {
	SizePrice   decimal.Decimal
	AddOnPrices []decimal.Decimal
	Quantity    int
	GSTRate     decimal.Decimal // percent
}

// Breakdown is the server-authoritative price of an order.
type Breakdown struct {
	Subtotal       decimal.Decimal
	GSTAmount      decimal.Decimal
	DeliveryCharge decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
}

// Money intermediates are rounded half-up to two decimal places per line
// before summation, so the stored totals are exact sums of stored lines.
const scale = 2

// LineTotal returns (sizePrice + sum of add-on prices) * quantity, rounded.
func LineTotal(l Line) decimal.Decimal {
	unit := l.SizePrice
	for _, p := range l.AddOnPrices {
		unit = unit.Add(p)
	}
	return unit.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(scale)
}

// LineGST returns the tax contribution of one line at its own category rate.
func LineGST(l Line) decimal.Decimal {
	return LineTotal(l).Mul(l.GSTRate).Div(decimal.NewFromInt(100)).Round(scale)
}

// Calculate prices a cart. If freeDelivery is set the delivery charge is
// forced to zero before totalling. The total is clamped at zero so an
// oversized discount can never produce a negative price.
func Calculate(lines []Line, deliveryCharge, discount decimal.Decimal, freeDelivery bool) Breakdown {
	subtotal := decimal.Zero
	gst := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l))
		gst = gst.Add(LineGST(l))
	}

	if freeDelivery {
		deliveryCharge = decimal.Zero
	}

	total := subtotal.Add(gst).Add(deliveryCharge).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:       subtotal,
		GSTAmount:      gst,
		DeliveryCharge: deliveryCharge,
		DiscountAmount: discount,
		TotalPrice:     total,
	}
}
