package identity

import "testing"

func TestWhitelist_EmptyAllowsAll(t *testing.T) {
	w := Whitelist{}
	if err := w.Allow("anyone@anywhere.test"); err != nil {
		t.Fatalf("empty whitelist should allow all, got: %v", err)
	}
}

func TestWhitelist_EmailShortCircuitsDomain(t *testing.T) {
	w := Whitelist{
		Emails:  []string{"jane@external.test"},
		Domains: []string{"corp.test"},
	}
	if err := w.Allow("jane@external.test"); err != nil {
		t.Fatalf("listed email should pass even with foreign domain: %v", err)
	}
}

func TestWhitelist_DomainAllows(t *testing.T) {
	w := Whitelist{Domains: []string{"corp.test"}}
	if err := w.Allow("someone@corp.test"); err != nil {
		t.Fatalf("domain member should pass: %v", err)
	}
	if err := w.Allow("someone@other.test"); err == nil {
		t.Fatalf("foreign domain should be rejected")
	}
}

func TestWhitelist_EmailsOnlyRejectsMiss(t *testing.T) {
	w := Whitelist{Emails: []string{"jane@corp.test"}}
	if err := w.Allow("john@corp.test"); err == nil {
		t.Fatalf("email not listed should be rejected")
	}
}

func TestUsernameFromEmail(t *testing.T) {
	if got := UsernameFromEmail("jane.doe@corp.test"); got != "jane.doe" {
		t.Fatalf("username = %q, want jane.doe", got)
	}
	if got := UsernameFromEmail(""); got != "" {
		t.Fatalf("username of empty email = %q, want empty", got)
	}
}

func TestEmailDomain(t *testing.T) {
	if got := EmailDomain("jane@corp.test"); got != "corp.test" {
		t.Fatalf("domain = %q, want corp.test", got)
	}
	if got := EmailDomain("no-at-sign"); got != "" {
		t.Fatalf("domain without @ = %q, want empty", got)
	}
}
