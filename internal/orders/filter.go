package orders

import (
	"fmt"
	"strings"
)

// StatusFilter selects orders by disposition and payment.
//
// The values are not orthogonal: "open" and "processed" both require the
// order to be paid, and "open_paid" only requires payment.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusOpenPaid  StatusFilter = "open_paid"
	StatusOpen      StatusFilter = "open"
	StatusProcessed StatusFilter = "processed"
)

// ParseStatus validates a status filter. An empty value means all.
func ParseStatus(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusOpenPaid:
		return StatusOpenPaid, nil
	case StatusOpen:
		return StatusOpen, nil
	case StatusProcessed:
		return StatusProcessed, nil
	default:
		return "", fmt.Errorf("invalid status filter: %q", s)
	}
}

// AllChannels disables channel filtering.
const AllChannels = "all"

// Filter is the channel/status selection shared by both aggregation paths.
type Filter struct {
	Channel string
	Status  StatusFilter
}

func (f Filter) channelActive() bool {
	return f.Channel != "" && !strings.EqualFold(f.Channel, AllChannels)
}

// Matches reports whether o passes the filter.
func (f Filter) Matches(o Order) bool {
	if f.channelActive() && o.Channel != f.Channel {
		return false
	}

	switch f.Status {
	case StatusOpenPaid:
		return o.IsPaid
	case StatusOpen:
		return o.IsOpen && o.IsPaid
	case StatusProcessed:
		return o.IsProcessed && o.IsPaid
	default:
		return true
	}
}

// Apply filters orders by the same rules as Matches.
func (f Filter) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	return out
}

// SQL returns a WHERE fragment (without the WHERE keyword) and its arguments
// for the orders table aliased as alias. It returns "1 = 1" when the filter
// selects everything.
func (f Filter) SQL(alias string) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	var clauses []string
	var args []any

	if f.channelActive() {
		clauses = append(clauses, col("channel")+" = ?")
		args = append(args, f.Channel)
	}

	switch f.Status {
	case StatusOpenPaid:
		clauses = append(clauses, col("is_paid")+" = 1")
	case StatusOpen:
		clauses = append(clauses, col("is_open")+" = 1", col("is_paid")+" = 1")
	case StatusProcessed:
		clauses = append(clauses, col("is_processed")+" = 1", col("is_paid")+" = 1")
	}

	if len(clauses) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Key identifies the filter in cache keys.
func (f Filter) Key() string {
	channel := f.Channel
	if !f.channelActive() {
		channel = AllChannels
	}
	status := f.Status
	if status == "" {
		status = StatusAll
	}
	return channel + "|" + string(status)
}
