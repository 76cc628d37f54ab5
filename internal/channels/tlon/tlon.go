// Package tlon implements the Tlon/Urbit-style outbound peer normalizer
// (spec component C11), representative of the per-channel normalizer shape
// used throughout the gateway: decode whatever a caller passes as a message
// target into a canonical peer kind/id plus the from/to addresses the
// channel client actually sends on.
package tlon

import "strings"

// Kind discriminates a direct (ship-to-ship) peer from a group/chat peer.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Peer is the decoded target: its kind and canonical id.
type Peer struct {
	Kind Kind
	ID   string
}

// Normalized is Normalize's full result: the decoded peer plus the from/to
// addresses derived from it.
type Normalized struct {
	Peer Peer
	From string
	To   string
}

// Normalize decodes a channel target string into its peer and routing
// addresses. It returns nil for a blank target (after trimming and
// stripping any leading "tlon:").
func Normalize(target string) *Normalized {
	t := strings.TrimSpace(target)
	t = strings.TrimPrefix(t, "tlon:")
	t = strings.TrimSpace(t)
	if t == "" {
		return nil
	}

	var peer Peer
	switch {
	case strings.HasPrefix(t, "dm:"):
		peer = Peer{Kind: KindDirect, ID: normalizeShip(strings.TrimPrefix(t, "dm:"))}
	case strings.HasPrefix(t, "group:"):
		peer = Peer{Kind: KindGroup, ID: groupID(strings.TrimPrefix(t, "group:"))}
	case strings.HasPrefix(t, "chat/"):
		peer = Peer{Kind: KindGroup, ID: t}
	case strings.Contains(t, "/"):
		peer = Peer{Kind: KindGroup, ID: groupID(t)}
	default:
		peer = Peer{Kind: KindDirect, ID: normalizeShip(t)}
	}

	return &Normalized{Peer: peer, From: fromAddress(peer), To: "tlon:" + peer.ID}
}

// groupID builds the canonical id for a group target named as "X/Y" (a
// ship-qualified channel) or as an opaque id with no slash at all.
func groupID(rest string) string {
	ship, channel, ok := strings.Cut(rest, "/")
	if !ok {
		return rest
	}
	return "chat/" + normalizeShip(ship) + "/" + channel
}

// normalizeShip prepends "~" to a ship token that's missing it; a ship id
// is any non-empty token.
func normalizeShip(s string) string {
	if s == "" || strings.HasPrefix(s, "~") {
		return s
	}
	return "~" + s
}

func fromAddress(peer Peer) string {
	if peer.Kind == KindGroup {
		return "tlon:group:" + peer.ID
	}
	return "tlon:" + peer.ID
}
