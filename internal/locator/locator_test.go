package locator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/kuitang/parabank-e2e/internal/errs"
)

func selectorGenerator() *rapid.Generator[Selector] {
	return rapid.Custom(func(t *rapid.T) Selector {
		strategy := rapid.SampledFrom([]Strategy{StrategyCSS, StrategyText}).Draw(t, "strategy")
		value := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9.\[\]='#_ -]{0,40}`).Draw(t, "value")
		return Selector{Strategy: strategy, Value: value}
	})
}

func testResolve_RoundtripAndDeterministic(t *rapid.T) {
	entries := rapid.MapOfN(
		rapid.StringMatching(`[a-z][a-zA-Z]{0,15}`),
		selectorGenerator(),
		1, 20,
	).Draw(t, "entries")

	table, err := NewTable("page", entries)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	for name, want := range entries {
		first, err := table.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		second, err := table.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) second call: %v", name, err)
		}
		if first != want || second != want {
			t.Fatalf("Resolve(%q) = %v then %v, want %v", name, first, second, want)
		}
	}
	if len(table.Names()) != len(entries) {
		t.Fatalf("Names() has %d entries, want %d", len(table.Names()), len(entries))
	}
}

func TestResolve_RoundtripAndDeterministic(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testResolve_RoundtripAndDeterministic)
}

func TestResolve_UnregisteredName(t *testing.T) {
	t.Parallel()
	table := MustNewTable("register", map[string]Selector{
		"firstName": CSS("input[name='customer.firstName']"),
	})

	_, err := table.Resolve("middleName")
	if err == nil {
		t.Fatal("expected error for unregistered name")
	}
	if errs.CodeOf(err) != errs.LocatorNotFound {
		t.Fatalf("code = %q, want %q", errs.CodeOf(err), errs.LocatorNotFound)
	}
}

func TestNewTable_CopiesEntries(t *testing.T) {
	t.Parallel()
	entries := map[string]Selector{"submit": CSS("input[value='Register']")}
	table := MustNewTable("register", entries)

	entries["submit"] = CSS("button")
	entries["extra"] = Text("Extra")

	got, err := table.Resolve("submit")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(CSS("input[value='Register']"), got); diff != "" {
		t.Fatalf("table mutated through caller map (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"submit"}, table.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTable_RejectsInvalidEntries(t *testing.T) {
	t.Parallel()
	cases := map[string]map[string]Selector{
		"empty name":       {"": CSS("a")},
		"empty value":      {"link": CSS("  ")},
		"unknown strategy": {"link": {Strategy: "xpath", Value: "//a"}},
	}
	for name, entries := range cases {
		if _, err := NewTable("page", entries); errs.CodeOf(err) != errs.InvalidArgument {
			t.Errorf("%s: got %v, want invalid_argument", name, err)
		}
	}
}

func TestSelector_String(t *testing.T) {
	t.Parallel()
	if got := Text("Initialize").String(); got != "text=Initialize" {
		t.Fatalf("String() = %q", got)
	}
	if got := CSS("#accountTable").String(); got != "css=#accountTable" {
		t.Fatalf("String() = %q", got)
	}
}
