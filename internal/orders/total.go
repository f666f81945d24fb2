package orders

import "github.com/shopspring/decimal"

// Total sums quantity * price_at_time over items. No items gives zero.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.PriceAtTime.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
