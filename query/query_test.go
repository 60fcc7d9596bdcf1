package query

import "testing"

func TestBindSubstitutesPlaceholdersInOrder(t *testing.T) {
	got := Bind("INSERT INTO tb_order VALUES (?, ?, ?)", []string{"5", "hello", "NULL"})
	want := "INSERT INTO tb_order VALUES (5, 'hello', NULL)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBindEscapesQuotes(t *testing.T) {
	got := Bind("SELECT * WHERE name = ?", []string{"O'Brien"})
	want := "SELECT * WHERE name = 'O''Brien'"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBindWithNoArgsReturnsSQLUnchanged(t *testing.T) {
	got := Bind("SELECT 1", nil)
	if got != "SELECT 1" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeReplacesLiteralsAndNumbers(t *testing.T) {
	got := Normalize("SELECT * FROM tb_order WHERE id = 42 AND name = 'alice'")
	want := "SELECT * FROM tb_order WHERE id = ? AND name = ?"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNormalizeDoesNotTouchDigitsInIdentifiers(t *testing.T) {
	got := Normalize("SELECT col1 FROM tb2")
	want := "SELECT col1 FROM tb2"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("SELECT   *\nFROM\ttb_order")
	want := "SELECT * FROM tb_order"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
