package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/parabank-e2e/internal/artifacts"
	"github.com/kuitang/parabank-e2e/internal/journey"
)

func sampleBatch() Batch {
	results := []*journey.Result{
		{
			RunID:    "run-ok",
			Journey:  "registration",
			Driver:   "playwright",
			Username: "user_1700000000000",
			Duration: 1500 * time.Millisecond,
			Passed:   true,
			Steps:    []journey.StepResult{{Name: "register", Status: journey.StatusPassed}},
		},
		{
			RunID:    "run-bad",
			Journey:  "register-login-summary",
			Driver:   "playwright",
			Username: "user_1700000000001",
			Steps: []journey.StepResult{
				{
					Name:       "register",
					Status:     journey.StatusFailed,
					Error:      "expected text: Passwords did not match.",
					Screenshot: "runs/run-bad/register-login-summary/register.png",
				},
				{Name: "logout", Status: journey.StatusSkipped},
			},
		},
	}
	return NewBatch("batch-1", time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), results)
}

func TestNewBatch_Tallies(t *testing.T) {
	t.Parallel()
	b := sampleBatch()
	assert.Equal(t, 1, b.Passed)
	assert.Equal(t, 1, b.Failed)
	assert.False(t, b.OK())

	assert.True(t, NewBatch("x", time.Now(), b.Results[:1]).OK())
	assert.False(t, NewBatch("x", time.Now(), nil).OK())
}

func TestJSON(t *testing.T) {
	t.Parallel()
	data, err := JSON(sampleBatch())
	require.NoError(t, err)

	var decoded struct {
		ID      string `json:"id"`
		Failed  int    `json:"failed"`
		Results []struct {
			Journey string `json:"journey"`
			Steps   []struct {
				Status string `json:"status"`
			} `json:"steps"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "batch-1", decoded.ID)
	assert.Equal(t, 1, decoded.Failed)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "skipped", decoded.Results[1].Steps[1].Status)
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	md := Markdown(sampleBatch())

	assert.Contains(t, md, "| registration | playwright | user_1700000000000 | passed | 1.5s |")
	assert.Contains(t, md, "| failed at register |")
	assert.Contains(t, md, "## register-login-summary")
	assert.Contains(t, md, "- **logout**: skipped")
	assert.Contains(t, md, "```text\nexpected text: Passwords did not match.\n```")
	assert.NotContains(t, md, "## registration\n")
}

func TestMarkdown_EscapesTableCells(t *testing.T) {
	t.Parallel()
	b := NewBatch("b", time.Now(), []*journey.Result{{Journey: "a|b\nc", Passed: true}})
	assert.Contains(t, Markdown(b), `| a\|b c |`)
}

func TestMarkdown_FixtureFailure(t *testing.T) {
	t.Parallel()
	b := NewBatch("b", time.Now(), []*journey.Result{{
		Journey: "registration",
		Fixture: "reset environment: Database Initialized not visible",
		Steps:   []journey.StepResult{{Name: "register", Status: journey.StatusSkipped}},
	}})
	md := Markdown(b)
	assert.Contains(t, md, "| reset failed |")
	assert.Contains(t, md, "Environment reset failed")
}

func TestHTML_SanitizesPageText(t *testing.T) {
	t.Parallel()
	b := sampleBatch()
	b.Results[1].Journey = `evil <img src=x onerror="alert(1)">`
	b.Results[1].Steps[0].Error = "observed <script>alert(1)</script>"

	out, err := HTML(b)
	require.NoError(t, err)
	page := string(out)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<table>")
	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "onerror=")
}

func TestPublish(t *testing.T) {
	t.Parallel()
	sink := artifacts.TestSink(t, "reports", "")
	b := sampleBatch()

	keys, err := Publish(t.Context(), sink, b)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/batch-1/report.json",
		"runs/batch-1/report.md",
		"runs/batch-1/report.html",
	}, keys)

	md, err := sink.Get(t.Context(), "runs/batch-1/report.md")
	require.NoError(t, err)
	assert.Equal(t, Markdown(b), string(md))
}
