package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// TopologyHash fingerprints a graph shape: the node set and the ordered
// source/target pairs. Positions and annotations do not contribute.
type TopologyHash Hash

func (h TopologyHash) String() string { return Hash(h).String() }

// ComputeTopologyHash hashes node ids (order-insensitive) and edges
// (order-insensitive, multiplicity preserved).
func ComputeTopologyHash(nodeIDs []string, edgePairs [][2]string) TopologyHash {
	ids := append([]string(nil), nodeIDs...)
	sort.Strings(ids)

	pairs := make([]string, 0, len(edgePairs))
	for _, p := range edgePairs {
		pairs = append(pairs, p[0]+"\x00"+p[1])
	}
	sort.Strings(pairs)

	var data strings.Builder
	for _, id := range ids {
		data.WriteString(id)
		data.WriteByte('\n')
	}
	data.WriteString("--\n")
	for _, p := range pairs {
		data.WriteString(p)
		data.WriteByte('\n')
	}
	return TopologyHash(NewHash([]byte(data.String())))
}
