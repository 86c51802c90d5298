package compiler

import (
	"bytes"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tokens, err := Tokenize("(defun sq (x) (* x x)) (sq 3)")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewParser(tokens).ParseProgram()
	if err != nil {
		t.Fatal(err)
	}

	data, err := MarshalTree(tree)
	if err != nil {
		t.Fatalf("MarshalTree failed: %v", err)
	}

	loaded, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree failed: %v", err)
	}

	if loaded.Len() != tree.Len() {
		t.Fatalf("node count = %d, want %d", loaded.Len(), tree.Len())
	}

	// Handles survive unchanged, so the renderings must match exactly.
	var orig, back bytes.Buffer
	PrintTree(&orig, tree)
	PrintTree(&back, loaded)
	if orig.String() != back.String() {
		t.Errorf("round-trip changed the tree:\n%swant:\n%s", back.String(), orig.String())
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	tokens, err := Tokenize("(+ 1 2.5)")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewParser(tokens).ParseProgram()
	if err != nil {
		t.Fatal(err)
	}

	a, err := MarshalTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding produced differing snapshots")
	}
}

func TestUnmarshalTreeRejectsEmpty(t *testing.T) {
	data, err := cborEncMode.Marshal(&snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalTree(data); err == nil {
		t.Error("expected error for snapshot without a root node")
	}
}
