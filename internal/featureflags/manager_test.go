package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", "dev-1") || !m.Enabled("c", "dev-1") || !m.Enabled("e", "dev-1") {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", "dev-1") || m.Enabled("d", "dev-1") || m.Enabled("f", "dev-1") {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", "dev-1") {
		t.Fatal("unknown flags are off")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", "dev-1") {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", "dev-1") {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", "3f1c2d9a")
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", "3f1c2d9a"); got != first {
			t.Fatal("rollout evaluation must be deterministic per subject")
		}
	}

	if m.Enabled("canary", "") {
		t.Fatal("percentage rollout requires a subject")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,live_feeds=on, auto_retry_feeds = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw[LiveFeeds] != "on" || raw[AutoRetryFeeds] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot("dev-1")
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}
