package pwsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextPattern_LiteralAndCaseSensitive(t *testing.T) {
	t.Parallel()

	re := textPattern("Passwords did not match.")
	assert.True(t, re.MatchString("Error: Passwords did not match. Try again"))
	assert.False(t, re.MatchString("passwords did not match."))
	assert.False(t, re.MatchString("Passwords did not matchX"), "the dot is literal")

	assert.True(t, textPattern("Balance*").MatchString("Total Balance*"))
	assert.False(t, textPattern("Balance*").MatchString("Balanceee"))
}
