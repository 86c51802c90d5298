package compiler

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshot: CBOR codec for (rewritten) trees
// ---------------------------------------------------------------------------

// cborEncMode uses canonical options for deterministic encoding, so that
// identical trees always produce identical snapshots.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// snapshotNode is the wire form of a Node. Handles are persisted as-is:
// they are plain arena indices (or negative sentinels) and survive a
// round-trip unchanged.
type snapshotNode struct {
	Kind   NodeKind    `cbor:"1,keyasint"`
	RType  ReturnType  `cbor:"2,keyasint"`
	Parent NodeIndex   `cbor:"3,keyasint"`
	Eval   NodeIndex   `cbor:"4,keyasint"`
	Name   string      `cbor:"5,keyasint,omitempty"`
	I32    int32       `cbor:"6,keyasint,omitempty"`
	F32    float32     `cbor:"7,keyasint,omitempty"`
	Args   []NodeIndex `cbor:"8,keyasint,omitempty"`
}

type snapshot struct {
	Nodes []snapshotNode `cbor:"1,keyasint"`
}

// MarshalTree serializes a tree to CBOR bytes.
func MarshalTree(t *Tree) ([]byte, error) {
	snap := snapshot{Nodes: make([]snapshotNode, len(t.nodes))}
	for i, n := range t.nodes {
		snap.Nodes[i] = snapshotNode{
			Kind:   n.Kind,
			RType:  n.RType,
			Parent: n.Parent,
			Eval:   n.Eval,
			Name:   n.Name,
			I32:    n.I32,
			F32:    n.F32,
			Args:   n.Args,
		}
	}
	return cborEncMode.Marshal(&snap)
}

// UnmarshalTree deserializes a tree from CBOR bytes.
func UnmarshalTree(data []byte) (*Tree, error) {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("compiler: unmarshal tree: %w", err)
	}
	if len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("compiler: unmarshal tree: missing root node")
	}

	t := &Tree{nodes: make([]Node, len(snap.Nodes))}
	for i, n := range snap.Nodes {
		t.nodes[i] = Node{
			Name:   n.Name,
			I32:    n.I32,
			F32:    n.F32,
			RType:  n.RType,
			Kind:   n.Kind,
			Parent: n.Parent,
			Eval:   n.Eval,
			Args:   n.Args,
		}
	}
	return t, nil
}
