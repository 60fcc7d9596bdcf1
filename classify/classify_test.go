package classify

import (
	"testing"

	"github.com/tapline/mysqlwire/event"
)

func paramsOfLen(n int, set map[int]string) []string {
	params := make([]string, n)
	for i := range params {
		params[i] = "x"
	}
	for i, v := range set {
		params[i] = v
	}
	return params
}

func TestS5OrderClassification(t *testing.T) {
	c := New(DefaultParamIndex)
	params := paramsOfLen(19, map[int]string{
		7:  "13000",
		9:  "39",
		16: "2024-01-01 12:00:00",
	})
	ev := event.Event{
		Kind:   event.Execute,
		Query:  "insert into tb_order values (?, ?, ?)",
		Params: params,
	}

	got := c.Classify(ev)
	if got.Kind != event.Order {
		t.Fatalf("expected ORDER classification, got %v", got.Kind)
	}
	if got.OrderKind != "tb_order" {
		t.Fatalf("expected tb_order, got %q", got.OrderKind)
	}
	if got.TotalPrice != "13,000원" {
		t.Fatalf("unexpected total_price: %q", got.TotalPrice)
	}
	if got.Seat != "39번" {
		t.Fatalf("unexpected seat: %q", got.Seat)
	}
	if got.OrderTime != "2024-01-01 12:00:00" {
		t.Fatalf("unexpected order_time: %q", got.OrderTime)
	}
}

func TestSuborderDistinction(t *testing.T) {
	c := New(DefaultParamIndex)
	ev := event.Event{
		Kind:  event.Execute,
		Query: "INSERT INTO tb_suborder (a) VALUES (?)",
	}
	got := c.Classify(ev)
	if got.Kind != event.Order || got.OrderKind != "tb_suborder" {
		t.Fatalf("expected tb_suborder, got kind=%v order_kind=%q", got.Kind, got.OrderKind)
	}
}

func TestNonOrderQueryIsUntouched(t *testing.T) {
	c := New(DefaultParamIndex)
	ev := event.Event{Kind: event.Query, Query: "SELECT * FROM users"}
	got := c.Classify(ev)
	if got.Kind != event.Query {
		t.Fatalf("expected unchanged QUERY event, got %v", got.Kind)
	}
}

func TestSelectIsNotAnOrderEvenWithTableToken(t *testing.T) {
	c := New(DefaultParamIndex)
	ev := event.Event{Kind: event.Query, Query: "SELECT * FROM tb_order WHERE id = 1"}
	got := c.Classify(ev)
	if got.Kind != event.Query {
		t.Fatalf("a SELECT against tb_order must not be tagged ORDER, got %v", got.Kind)
	}
}

func TestMissingParamsFallBackToNADefaults(t *testing.T) {
	c := New(DefaultParamIndex)
	ev := event.Event{Kind: event.Query, Query: "update toll set x = 1"}
	got := c.Classify(ev)
	if got.Kind != event.Order {
		t.Fatalf("expected ORDER classification, got %v", got.Kind)
	}
	if got.Seat != "N/A" || got.OrderTime != "N/A" || got.TotalPrice != "0원" {
		t.Fatalf("unexpected fallback values: seat=%q total=%q time=%q", got.Seat, got.TotalPrice, got.OrderTime)
	}
}

func TestNormalizeStripsBracketsAndCollapsesWhitespace(t *testing.T) {
	got := Normalize("INSERT  INTO `tb_order`\n[values] (1,\t2)")
	want := "insert into tb_order values (1, 2)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestClassifyRejectsCmdAndRowKinds(t *testing.T) {
	c := New(DefaultParamIndex)
	row := event.Event{Kind: event.Row, Row: []string{"order"}}
	if c.Classify(row).Kind != event.Row {
		t.Fatal("ROW events must never be classified as ORDER")
	}
}
