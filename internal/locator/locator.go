// Package locator maps logical element names to concrete selectors so that
// page objects never spell out DOM details inline.
//
// A Table is built once per page object and never mutated afterwards;
// Resolve is a pure lookup and returns the same Selector for the same name
// for the lifetime of the table.
package locator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kuitang/parabank-e2e/internal/errs"
)

// Strategy is how a selector value is interpreted by a browser driver.
type Strategy string

const (
	// StrategyCSS matches elements by CSS selector.
	StrategyCSS Strategy = "css"
	// StrategyText matches the deepest element whose visible text contains the value.
	StrategyText Strategy = "text"
)

// Selector identifies one element on a page.
type Selector struct {
	Strategy Strategy
	Value    string
}

// CSS returns a CSS selector.
func CSS(value string) Selector {
	return Selector{Strategy: StrategyCSS, Value: value}
}

// Text returns a visible-text selector.
func Text(value string) Selector {
	return Selector{Strategy: StrategyText, Value: value}
}

func (s Selector) String() string {
	return string(s.Strategy) + "=" + s.Value
}

// Validate checks the strategy is known and the value non-empty.
func (s Selector) Validate() error {
	switch s.Strategy {
	case StrategyCSS, StrategyText:
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown selector strategy %q", s.Strategy))
	}
	if strings.TrimSpace(s.Value) == "" {
		return errs.New(errs.InvalidArgument, "selector value is empty")
	}
	return nil
}

// Table is an immutable logical-name to selector mapping for one page.
type Table struct {
	page    string
	entries map[string]Selector
}

// NewTable validates and copies entries into a new Table.
func NewTable(page string, entries map[string]Selector) (*Table, error) {
	copied := make(map[string]Selector, len(entries))
	for name, sel := range entries {
		if strings.TrimSpace(name) == "" {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("%s: empty locator name", page))
		}
		if err := sel.Validate(); err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("%s: locator %q", page, name), err)
		}
		copied[name] = sel
	}
	return &Table{page: page, entries: copied}, nil
}

// MustNewTable is NewTable for package-level page definitions.
func MustNewTable(page string, entries map[string]Selector) *Table {
	t, err := NewTable(page, entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Page returns the page name the table belongs to.
func (t *Table) Page() string {
	return t.page
}

// Resolve returns the selector registered under name.
func (t *Table) Resolve(name string) (Selector, error) {
	sel, ok := t.entries[name]
	if !ok {
		return Selector{}, errs.New(errs.LocatorNotFound, fmt.Sprintf("%s: no locator registered for %q", t.page, name))
	}
	return sel, nil
}

// Names returns the registered names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
