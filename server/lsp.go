// Package server hosts the editor-facing LSP surface of slip. Diagnostics
// come straight from the lexer and binder, so editors see the same
// row/column messages the CLI prints.
package server

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/slip-lang/slip/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "slip-lsp"

// intrinsicDocs maps each built-in function to its hover documentation.
var intrinsicDocs = map[string]string{
	"+":       "**+**: sum of two or more operands, left-associative; f32 if any operand is f32",
	"-":       "**-**: difference of two or more operands, left-associative; f32 if any operand is f32",
	"*":       "*\\**: product of two or more operands, left-associative; f32 if any operand is f32",
	"/":       "**/**: quotient of two or more operands, left-associative; f32 if any operand is f32",
	"ifzero":  "**ifzero** pred then else: evaluates *then* when pred is zero, *else* otherwise",
	"ifneg":   "**ifneg** pred then else: evaluates *then* when pred is negative, *else* otherwise",
	"print":   "**print** expr: prints the value followed by a newline, returns it",
	"readi32": "**readi32**: prompts `i: ` and reads one whitespace-delimited i32 from stdin",
	"readf32": "**readf32**: prompts `f: ` and reads one whitespace-delimited f32 from stdin",
	"defun":   "**defun** name (params...) body...: defines a function; admissible only directly inside a let",
	"let":     "**let** ((name expr)...) body...: introduces sequentially scoped bindings",
}

// LspServer bridges LSP editor features to the slip front end.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "slip LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil, nil
	}

	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	doc, ok := intrinsicDocs[word]
	if !ok {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
	}, nil
}

// complete returns completion items for the given prefix: keywords plus
// every identifier appearing in the document.
func complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	for name := range intrinsicDocs {
		if strings.HasPrefix(name, prefix) {
			kind := protocol.CompletionItemKindKeyword
			nameCopy := name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				InsertText: &nameCopy,
			})
		}
	}

	// Identifiers come from the token stream, so completion keeps working
	// in documents that do not bind yet.
	if tokens, err := compiler.Tokenize(text); err == nil {
		seen := make(map[string]bool)
		for _, tok := range tokens {
			if tok.Type != compiler.TokenIdent || seen[tok.Text] {
				continue
			}
			seen[tok.Text] = true
			if strings.HasPrefix(tok.Text, prefix) && tok.Text != prefix {
				kind := protocol.CompletionItemKindVariable
				name := tok.Text
				items = append(items, protocol.CompletionItem{
					Label:      name,
					Kind:       &kind,
					InsertText: &name,
				})
			}
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnosticsFor(text)

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticsFor lexes and binds the document, mapping the first front-end
// error to an LSP diagnostic. The compiler's rows and columns are 0-based,
// matching the LSP coordinate space directly.
func diagnosticsFor(text string) []protocol.Diagnostic {
	var compileErr error

	tokens, err := compiler.Tokenize(text)
	if err != nil {
		compileErr = err
	} else if len(tokens) > 0 {
		_, compileErr = compiler.NewParser(tokens).ParseProgram()
	}

	if compileErr == nil {
		return nil
	}

	rng := protocol.Range{}
	var srcErr *compiler.SourceError
	if errors.As(compileErr, &srcErr) {
		rng = protocol.Range{
			Start: protocol.Position{Line: srcErr.Row, Character: srcErr.Col},
			End:   protocol.Position{Line: srcErr.Row, Character: srcErr.Col + 1},
		}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  compileErr.Error(),
	}}
}

// --- Text extraction helpers ---

func isWordChar(ch byte) bool {
	return ch >= '0' && ch <= '9' ||
		ch >= 'A' && ch <= 'Z' ||
		ch == '_' ||
		ch >= 'a' && ch <= 'z'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier or keyword under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}

	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}

	if start == end {
		// Operators are single non-word characters.
		if col < len(line) {
			if op := string(line[col]); intrinsicDocs[op] != "" {
				return op
			}
		}
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
