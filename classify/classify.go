// Package classify inspects decoded events and tags the business-level
// ORDER events a point-of-sale operator cares about.
//
// Grounded on original_source/python_packetSnip/main.py's
// process_mysql_packet (table/verb predicates, params[7]/[9]/[16]
// convention, tb_order vs tb_suborder split) and scapy_main.py's
// normalize_query. The teacher's query/normalize.go showed the scanning
// technique for a lexical normalizer; this one follows the plainer
// strip/collapse/lowercase rule the specification calls for instead of the
// teacher's placeholder-substitution variant.
package classify

import (
	"strconv"
	"strings"

	"github.com/tapline/mysqlwire/event"
)

var tableTokens = []string{"order", "suborder", "toll", "billing"}
var verbTokens = []string{"insert", "update"}

// ParamIndex names the business-parameter-index convention used to pull
// order fields out of an EXECUTE's bound parameters. These are site-
// specific contracts with the upstream application, not MySQL protocol
// (spec.md §9 Open Questions), so they are configurable rather than
// hardcoded.
type ParamIndex struct {
	Seat       int
	TotalPrice int
	OrderTime  int
}

// DefaultParamIndex matches the convention observed in the original
// point-of-sale traffic (spec.md §4.6).
var DefaultParamIndex = ParamIndex{Seat: 9, TotalPrice: 7, OrderTime: 16}

// Classifier tags ORDER events on top of a Decoder's output.
type Classifier struct {
	idx ParamIndex
}

// New creates a Classifier using idx for the business-parameter convention.
func New(idx ParamIndex) *Classifier {
	return &Classifier{idx: idx}
}

// Classify inspects ev and, if it represents a business order, returns a
// copy tagged Kind=ORDER with order_kind/seat_no/total_price/order_time
// populated. Otherwise it returns ev unchanged.
func (c *Classifier) Classify(ev event.Event) event.Event {
	if ev.Kind != event.Query && ev.Kind != event.Execute {
		return ev
	}
	normalized := Normalize(ev.Query)
	if normalized == "" {
		return ev
	}
	if !containsAny(normalized, tableTokens) || !containsAny(normalized, verbTokens) {
		return ev
	}

	tagged := ev
	tagged.Kind = event.Order
	if strings.Contains(normalized, "suborder") {
		tagged.OrderKind = "tb_suborder"
	} else {
		tagged.OrderKind = "tb_order"
	}

	tagged.Seat = paramOrNA(ev.Params, c.idx.Seat, formatSeat)
	tagged.TotalPrice = paramOrDefault(ev.Params, c.idx.TotalPrice, "0원", formatPrice)
	tagged.OrderTime = paramOrNA(ev.Params, c.idx.OrderTime, func(s string) string { return s })

	return tagged
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// paramOrNA and paramOrDefault mirror spec.md §4.6's per-field thresholds: seat_no and
// total_price require |params| > index, order_time requires |params| >= 17.
func paramOrNA(params []string, idx int, format func(string) string) string {
	if idx < 0 || idx >= len(params) {
		return "N/A"
	}
	v := params[idx]
	if v == "" || v == "NULL" {
		return "N/A"
	}
	return format(v)
}

func paramOrDefault(params []string, idx int, fallback string, format func(string) string) string {
	if idx < 0 || idx >= len(params) {
		return fallback
	}
	v := params[idx]
	if v == "" || v == "NULL" {
		return fallback
	}
	return format(v)
}

func formatSeat(v string) string {
	if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
		return "N/A"
	}
	return strings.TrimSpace(v) + "번"
}

func formatPrice(v string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return "0원"
	}
	return thousands(n) + "원"
}

// thousands formats n with comma thousands separators (e.g. 13000 -> "13,000").
func thousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)

	var out []byte
	for i, c := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Normalize strips brackets/backticks, collapses whitespace, and lowercases
// a query for predicate matching (spec.md §4.6).
func Normalize(q string) string {
	if q == "" {
		return ""
	}
	var b strings.Builder
	lastWasSpace := false
	for _, r := range q {
		switch r {
		case '[', ']', '`':
			continue
		case ' ', '\t', '\n', '\r':
			if !lastWasSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}
