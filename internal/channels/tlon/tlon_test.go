package tlon

import "testing"

func TestNormalizeBareShip(t *testing.T) {
	got := Normalize("host-ship")
	want := &Normalized{Peer: Peer{Kind: KindDirect, ID: "~host-ship"}, From: "tlon:~host-ship", To: "tlon:~host-ship"}
	assertNormalized(t, got, want)
}

func TestNormalizeShipAlreadyPrefixed(t *testing.T) {
	got := Normalize("~host-ship")
	want := &Normalized{Peer: Peer{Kind: KindDirect, ID: "~host-ship"}, From: "tlon:~host-ship", To: "tlon:~host-ship"}
	assertNormalized(t, got, want)
}

func TestNormalizeDMPrefix(t *testing.T) {
	got := Normalize("dm:host-ship")
	want := &Normalized{Peer: Peer{Kind: KindDirect, ID: "~host-ship"}, From: "tlon:~host-ship", To: "tlon:~host-ship"}
	assertNormalized(t, got, want)
}

// Group-prefixed target normalizes to a group peer with the prefix stripped.
func TestNormalizeGroupPrefixScenarioS1(t *testing.T) {
	got := Normalize("group:~host-ship/general")
	want := &Normalized{
		Peer: Peer{Kind: KindGroup, ID: "chat/~host-ship/general"},
		From: "tlon:group:chat/~host-ship/general",
		To:   "tlon:chat/~host-ship/general",
	}
	assertNormalized(t, got, want)
}

func TestNormalizeBareGroupPath(t *testing.T) {
	got := Normalize("host-ship/general")
	want := &Normalized{
		Peer: Peer{Kind: KindGroup, ID: "chat/~host-ship/general"},
		From: "tlon:group:chat/~host-ship/general",
		To:   "tlon:chat/~host-ship/general",
	}
	assertNormalized(t, got, want)
}

func TestNormalizeChatPathAsIs(t *testing.T) {
	got := Normalize("chat/~host-ship/random-room")
	want := &Normalized{
		Peer: Peer{Kind: KindGroup, ID: "chat/~host-ship/random-room"},
		From: "tlon:group:chat/~host-ship/random-room",
		To:   "tlon:chat/~host-ship/random-room",
	}
	assertNormalized(t, got, want)
}

func TestNormalizeOpaqueGroupID(t *testing.T) {
	got := Normalize("group:opaque-group-id")
	want := &Normalized{
		Peer: Peer{Kind: KindGroup, ID: "opaque-group-id"},
		From: "tlon:group:opaque-group-id",
		To:   "tlon:opaque-group-id",
	}
	assertNormalized(t, got, want)
}

func TestNormalizeStripsTlonPrefix(t *testing.T) {
	got := Normalize("tlon:~host-ship")
	want := &Normalized{Peer: Peer{Kind: KindDirect, ID: "~host-ship"}, From: "tlon:~host-ship", To: "tlon:~host-ship"}
	assertNormalized(t, got, want)
}

func TestNormalizeBlankReturnsNil(t *testing.T) {
	if got := Normalize("   "); got != nil {
		t.Fatalf("Normalize(blank) = %+v, want nil", got)
	}
}

func assertNormalized(t *testing.T, got, want *Normalized) {
	t.Helper()
	if got == nil {
		t.Fatalf("Normalize returned nil, want %+v", want)
	}
	if *got != *want {
		t.Fatalf("Normalize = %+v, want %+v", got, want)
	}
}
