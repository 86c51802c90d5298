package compiler

import (
	"bytes"
	"testing"
)

func TestPrintTree(t *testing.T) {
	tokens, err := Tokenize("(let ((x 1)) x)")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewParser(tokens).ParseProgram()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	PrintTree(&buf, tree)

	// Arena order: 0 root, 1 let, 2 init, 3 literal, 4 eval-var.
	want := "LET: i32\n" +
		"  INIT: i32 x (2)\n" +
		"    LITERAL: i32 1\n" +
		"  EVAL-VAR: i32 x (2)\n"
	if buf.String() != want {
		t.Errorf("PrintTree output:\n%swant:\n%s", buf.String(), want)
	}
}

func TestPrintTreeDefunAndFloat(t *testing.T) {
	tokens, err := Tokenize("(defun one () 1.5) (one)")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewParser(tokens).ParseProgram()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	PrintTree(&buf, tree)

	want := "LET: f32 one\n" +
		"  LITERAL: f32 1.500000\n" +
		"EVAL-FUN: f32 one\n"
	if buf.String() != want {
		t.Errorf("PrintTree output:\n%swant:\n%s", buf.String(), want)
	}
}
