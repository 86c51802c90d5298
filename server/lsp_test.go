package server

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnosticsCleanDocument(t *testing.T) {
	diags := diagnosticsFor("(defun sq (x) (* x x)) (sq 3)")
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
}

func TestDiagnosticsEmptyDocument(t *testing.T) {
	diags := diagnosticsFor("")
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
}

func TestDiagnosticsLexError(t *testing.T) {
	diags := diagnosticsFor("(print @)")
	if len(diags) != 1 {
		t.Fatalf("diagnostic count = %d, want 1", len(diags))
	}
	if diags[0].Range.Start.Line != 0 || diags[0].Range.Start.Character != 7 {
		t.Errorf("diagnostic at %d:%d, want 0:7",
			diags[0].Range.Start.Line, diags[0].Range.Start.Character)
	}
}

func TestDiagnosticsBindError(t *testing.T) {
	diags := diagnosticsFor("(let ((x 1))\n  (+ x y))")
	if len(diags) != 1 {
		t.Fatalf("diagnostic count = %d, want 1", len(diags))
	}
	if diags[0].Range.Start.Line != 1 {
		t.Errorf("diagnostic line = %d, want 1", diags[0].Range.Start.Line)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func containsLabel(items []protocol.CompletionItem, label string) bool {
	for _, item := range items {
		if item.Label == label {
			return true
		}
	}
	return false
}

func TestCompleteKeywords(t *testing.T) {
	items := complete("", "if")
	if !containsLabel(items, "ifzero") || !containsLabel(items, "ifneg") {
		t.Errorf("complete(if) = %v, want ifzero and ifneg", items)
	}
}

func TestCompleteIdentifiers(t *testing.T) {
	text := "(defun fibonacci (x y n) (ifzero n y x)) (fib"
	items := complete(text, "fib")
	if !containsLabel(items, "fibonacci") {
		t.Errorf("complete(fib) = %v, want fibonacci", items)
	}
}

func TestCompleteNoSelfMatch(t *testing.T) {
	// The fragment being typed is not offered as its own completion.
	items := complete("xyz", "xyz")
	if containsLabel(items, "xyz") {
		t.Errorf("complete(xyz) offered the fragment itself")
	}
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"(print fo", 0, 9, "fo"},
		{"(print fo", 0, 7, ""},
		{"", 0, 0, ""},
		{"first\n(fi", 1, 3, "fi"},
		{"single", 5, 0, ""},
	}

	for _, tc := range tests {
		got := extractPrefix(tc.text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"(print x)", 0, 3, "print"},
		{"(print x)", 0, 7, "x"},
		{"(ifzero n 1 2)", 0, 4, "ifzero"},
		{"(+ 1 2)", 0, 1, "+"},
		{"( )", 0, 0, ""},
	}

	for _, tc := range tests {
		got := extractWord(tc.text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractWord(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestHoverDocsCoverAllIntrinsics(t *testing.T) {
	for _, name := range []string{"+", "-", "*", "/", "ifzero", "ifneg", "print", "readi32", "readf32"} {
		if intrinsicDocs[name] == "" {
			t.Errorf("no hover documentation for intrinsic %q", name)
		}
	}
}
