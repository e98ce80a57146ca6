// Package customer builds the registration record a journey types into the
// bank's sign-up form.
package customer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/parabank-e2e/internal/errs"
)

// Record is one customer's registration data. It is a value: copy it, never share a pointer.
type Record struct {
	FirstName        string
	LastName         string
	Address          string
	City             string
	State            string
	Zip              string
	Phone            string
	SSN              string
	Username         string
	Password         string
	RepeatedPassword string
}

// Fields returns the record as form-field name to value, in form order.
func (r Record) Fields() []Field {
	return []Field{
		{"firstName", r.FirstName},
		{"lastName", r.LastName},
		{"address", r.Address},
		{"city", r.City},
		{"state", r.State},
		{"zip", r.Zip},
		{"phone", r.Phone},
		{"ssn", r.SSN},
		{"username", r.Username},
		{"password", r.Password},
		{"repeatedPassword", r.RepeatedPassword},
	}
}

// Field is one named record value.
type Field struct {
	Name  string
	Value string
}

// Validate requires every field to be non-empty. It intentionally does not
// compare Password with RepeatedPassword: the bank must reject a mismatch.
func (r Record) Validate() error {
	var missing []string
	for _, f := range r.Fields() {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return errs.New(errs.InvalidArgument, "customer record missing fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// FullName is the name the bank greets a logged-in customer with.
func (r Record) FullName() string {
	return r.FirstName + " " + r.LastName
}

// Clock abstracts time.Now for deterministic usernames in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// FakeClock is a controllable Clock. Safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Template holds the non-unique values copied into every generated record.
var Template = Record{
	FirstName: "Test",
	LastName:  "User",
	Address:   "Test Street",
	City:      "Test City",
	State:     "TS",
	Zip:       "12345",
	Phone:     "9999999999",
	SSN:       "123-45-6789",
	Password:  "Password123",
}

// Generator issues records with usernames of the form user_<unix-millis>.
// The millisecond seed is strictly increasing per generator, so two calls in
// the same millisecond, or after the clock stepped backwards, still differ.
type Generator struct {
	clock    Clock
	template Record
	seq      *sequence
}

type sequence struct {
	mu   sync.Mutex
	last int64
}

// NewGenerator returns a Generator over clock using Template.
func NewGenerator(clock Clock) *Generator {
	if clock == nil {
		clock = SystemClock
	}
	return &Generator{clock: clock, template: Template, seq: &sequence{}}
}

// WithTemplate returns a generator that fills records from tmpl and shares
// g's username sequence.
func (g *Generator) WithTemplate(tmpl Record) *Generator {
	return &Generator{clock: g.clock, template: tmpl, seq: g.seq}
}

func (g *Generator) nextSeed() int64 {
	g.seq.mu.Lock()
	defer g.seq.mu.Unlock()
	seed := g.clock.Now().UnixMilli()
	if seed <= g.seq.last {
		seed = g.seq.last + 1
	}
	g.seq.last = seed
	return seed
}

// Next returns a complete record with a fresh username.
func (g *Generator) Next() Record {
	r := g.template
	r.Username = fmt.Sprintf("user_%d", g.nextSeed())
	if r.RepeatedPassword == "" {
		r.RepeatedPassword = r.Password
	}
	return r
}
