// Package metrics computes sales metrics over a window of orders, either in
// memory over a materialized order set or by pushing aggregation down into
// the store. Both paths produce the same Summary for the same rows.
package metrics

import (
	"github.com/shopspring/decimal"

	"salesboard/internal/orders"
)

// RevenueSource names the stage of the fallback chain that produced an
// order's revenue.
type RevenueSource int

const (
	SourceNone RevenueSource = iota
	SourceCharge
	SourceEmbeddedItems
	SourceLineItems
	SourcePaid
)

func (s RevenueSource) String() string {
	switch s {
	case SourceCharge:
		return "charge"
	case SourceEmbeddedItems:
		return "embedded_items"
	case SourceLineItems:
		return "line_items"
	case SourcePaid:
		return "paid"
	default:
		return "none"
	}
}

type resolved struct {
	value  decimal.Decimal
	source RevenueSource
}

// RevenueResolver determines the authoritative value of an order. A resolver
// memoizes by order key and belongs to one aggregation run; it is not safe
// for concurrent use.
type RevenueResolver struct {
	memo map[string]resolved
}

func NewRevenueResolver() *RevenueResolver {
	return &RevenueResolver{memo: make(map[string]resolved)}
}

// Resolve returns the order's revenue. The first positive value wins:
// total charge, the embedded line sum, the loaded normalized line sum, total
// paid. Otherwise zero.
func (r *RevenueResolver) Resolve(o orders.Order) decimal.Decimal {
	v, _ := r.ResolveStage(o)
	return v
}

// ResolveStage is Resolve that also reports which stage produced the value.
func (r *RevenueResolver) ResolveStage(o orders.Order) (decimal.Decimal, RevenueSource) {
	key := o.Key()
	if hit, ok := r.memo[key]; ok {
		return hit.value, hit.source
	}

	res := resolveRevenue(o)
	r.memo[key] = res
	return res.value, res.source
}

// Len returns the number of memoized orders.
func (r *RevenueResolver) Len() int {
	return len(r.memo)
}

func resolveRevenue(o orders.Order) resolved {
	if o.TotalCharge.IsPositive() {
		return resolved{o.TotalCharge, SourceCharge}
	}
	if sum := orders.SumValue(o.Items); sum.IsPositive() {
		return resolved{sum, SourceEmbeddedItems}
	}
	if o.LineItemsLoaded {
		if sum := orders.SumValue(o.LineItems); sum.IsPositive() {
			return resolved{sum, SourceLineItems}
		}
	}
	if o.TotalPaid.IsPositive() {
		return resolved{o.TotalPaid, SourcePaid}
	}
	return resolved{decimal.Zero, SourceNone}
}
