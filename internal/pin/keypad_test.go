package pin

import "testing"

func TestAppendStopsAtLength(t *testing.T) {
	p := ""
	for i := 0; i < 11; i++ {
		p, _ = Append(p, "1")
	}
	if p != "111111" {
		t.Fatalf("expected 6 keys, got %q", p)
	}
	if _, ok := Append(p, "2"); ok {
		t.Fatalf("expected append to a full PIN to be rejected")
	}
}

func TestAppendRejectsKeysOffKeypad(t *testing.T) {
	for _, key := range []string{"E", "a", "*", "#", "", "12"} {
		p, ok := Append("12", key)
		if ok || p != "12" {
			t.Fatalf("key %q: expected rejection, got %q ok=%v", key, p, ok)
		}
	}
	for _, key := range []string{"0", "9", "A", "D"} {
		if _, ok := Append("", key); !ok {
			t.Fatalf("key %q: expected acceptance", key)
		}
	}
}

func TestDelete(t *testing.T) {
	if got := Delete("12A"); got != "12" {
		t.Fatalf("expected 12, got %q", got)
	}
	if got := Delete(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("12AB9D"); err != nil {
		t.Fatalf("expected valid PIN, got %v", err)
	}
	if Complete("12345") {
		t.Fatalf("expected 5-key PIN to be incomplete")
	}
	if Complete("12345E") {
		t.Fatalf("expected PIN with E to be invalid")
	}
}
