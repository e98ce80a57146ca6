package logutil

import (
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"customer.password":  true,
		"repeatedPassword":   true,
		"customer.ssn":       true,
		"taxId":              true,
		"Set-Cookie":         true,
		"JSESSIONID":         true,
		"Authorization":      true,
		"customer.username":  false,
		"customer.firstName": false,
		"action":             false,
	}
	for key, want := range cases {
		if got := IsSensitiveLogField(key); got != want {
			t.Errorf("IsSensitiveLogField(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestFormatFormForLog_RedactsAndSorts(t *testing.T) {
	t.Parallel()
	form := url.Values{
		"customer.username": {"user_1"},
		"customer.password": {"Password123"},
		"customer.ssn":      {"123-45-6789"},
	}
	got := FormatFormForLog(form)
	want := `customer.password="[REDACTED]"; customer.ssn="[REDACTED]"; customer.username="user_1"`
	if got != want {
		t.Fatalf("FormatFormForLog = %q, want %q", got, want)
	}
	if FormatFormForLog(nil) != "{}" {
		t.Fatalf("FormatFormForLog(nil) = %q", FormatFormForLog(nil))
	}
}

func testFormatFormForLog_NeverLeaksPasswords(t *rapid.T) {
	secret := rapid.StringMatching(`[A-Za-z0-9]{8,24}`).Draw(t, "secret")
	key := rapid.SampledFrom([]string{"customer.password", "repeatedPassword", "password", "customer.ssn"}).Draw(t, "key")

	out := FormatFormForLog(url.Values{key: {secret}, "customer.city": {"Test City"}})
	if strings.Contains(out, secret) {
		t.Fatalf("secret leaked into log line: %q", out)
	}
	if !strings.Contains(out, "Test City") {
		t.Fatalf("non-sensitive value missing: %q", out)
	}
}

func TestFormatFormForLog_NeverLeaksPasswords(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFormatFormForLog_NeverLeaksPasswords)
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := TruncateForLog("  a\nb  ", 0); got != `a\nb` {
		t.Fatalf("TruncateForLog = %q", got)
	}
	if got := TruncateForLog("abcdefgh", 3); got != "abc... [truncated]" {
		t.Fatalf("TruncateForLog = %q", got)
	}
	if got := TruncateForLog("   ", 3); got != "" {
		t.Fatalf("TruncateForLog(blank) = %q", got)
	}
}
