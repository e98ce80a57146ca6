package customer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/parabank-e2e/internal/errs"
)

func TestNext_LiteralScenario(t *testing.T) {
	t.Parallel()
	clock := NewFakeClock(time.UnixMilli(1700000000000))
	r := NewGenerator(clock).Next()

	assert.Equal(t, "user_1700000000000", r.Username)
	assert.Equal(t, "Test", r.FirstName)
	assert.Equal(t, "User", r.LastName)
	assert.Equal(t, "Password123", r.Password)
	assert.Equal(t, "Password123", r.RepeatedPassword)
	assert.Equal(t, "Test User", r.FullName())
	require.NoError(t, r.Validate())
}

func testNext_UsernamesStrictlyIncrease(t *rapid.T) {
	start := rapid.Int64Range(1_600_000_000_000, 1_900_000_000_000).Draw(t, "start")
	steps := rapid.SliceOfN(rapid.Int64Range(-5, 5), 1, 50).Draw(t, "steps")

	clock := NewFakeClock(time.UnixMilli(start))
	gen := NewGenerator(clock)
	seen := make(map[string]bool, len(steps))
	prev := int64(0)
	for _, step := range steps {
		clock.Advance(time.Duration(step) * time.Millisecond)
		r := gen.Next()
		if seen[r.Username] {
			t.Fatalf("duplicate username %q", r.Username)
		}
		seen[r.Username] = true
		seed := gen.seq.last
		if seed <= prev {
			t.Fatalf("seed did not increase: prev=%d got=%d", prev, seed)
		}
		prev = seed
	}
}

func TestNext_UsernamesStrictlyIncrease(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testNext_UsernamesStrictlyIncrease)
}

func TestNext_UniqueAcrossGoroutines(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(NewFakeClock(time.UnixMilli(1700000000000)))

	const workers, perWorker = 8, 50
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				name := gen.Next().Username
				mu.Lock()
				seen[name] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestValidate_RequiresEveryField(t *testing.T) {
	t.Parallel()
	r := NewGenerator(nil).Next()
	r.City = ""
	r.SSN = "  "

	err := r.Validate()
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "city")
	assert.Contains(t, err.Error(), "ssn")
}

func TestValidate_AllowsPasswordMismatch(t *testing.T) {
	t.Parallel()
	r := NewGenerator(nil).Next()
	r.RepeatedPassword = "Different456"
	assert.NoError(t, r.Validate())
}

func TestWithTemplate(t *testing.T) {
	t.Parallel()
	tmpl := Template
	tmpl.FirstName = "Ada"
	tmpl.RepeatedPassword = "Mismatch1"

	r := NewGenerator(NewFakeClock(time.UnixMilli(1))).WithTemplate(tmpl).Next()
	assert.Equal(t, "Ada", r.FirstName)
	assert.Equal(t, "Mismatch1", r.RepeatedPassword)
	assert.Equal(t, "user_1", r.Username)
}

func TestWithTemplate_SharesSequence(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(NewFakeClock(time.UnixMilli(1700000000000)))
	mismatched := gen.WithTemplate(Template)

	a := gen.Next()
	b := mismatched.Next()
	assert.NotEqual(t, a.Username, b.Username)
}
