package flowgraph

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// hashKey mirrors the teacher's inspector/graph/hash.go fixed key; it is
// not a secret, just a fixed seed for a stable, repository-wide hash.
var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// contentHash hashes data deterministically, lifted near-verbatim from the
// teacher's `inspector/graph.Hash` helper.
func contentHash(data []byte) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// hashKey is a fixed 32-byte constant; New64 only errors on key
		// length, so this path is unreachable in practice.
		return 0
	}
	_, _ = h.Write(data)
	return h.Sum64()
}

// nodeNamer assigns deterministic node identifiers: a running count per
// qualified name, shared across the entire recording including every
// nested subgraph (§4.8 "Node naming"). Because the count is shared, a plain
// "Name:N" id is normally unique; a highwayhash of the owning scope id is
// appended only when that id has already been marked seen.
type nodeNamer struct {
	counts map[string]int
	seen   map[string]bool
}

func newNodeNamer() *nodeNamer {
	return &nodeNamer{counts: map[string]int{}, seen: map[string]bool{}}
}

// next returns the next id for qualified, scoped by scopeID only for the
// rare case two different scopes would otherwise produce the exact same
// "Name:N" pair; ordinarily the running count alone already disambiguates,
// matching the spec's worked examples (`A:1`, `B:1`, `B:2`, `f:1`).
func (n *nodeNamer) next(qualified, scopeID string) string {
	n.counts[qualified]++
	count := n.counts[qualified]
	id := fmt.Sprintf("%s:%d", qualified, count)
	if _, taken := n.seen[id]; !taken {
		n.markSeen(id)
		return id
	}
	disambig := contentHash([]byte(qualified + "|" + scopeID + "|" + fmt.Sprint(count)))
	id = fmt.Sprintf("%s:%d-%x", qualified, count, disambig&0xffff)
	n.markSeen(id)
	return id
}

func (n *nodeNamer) markSeen(id string) {
	n.seen[id] = true
}
