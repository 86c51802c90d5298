// slip CLI - parse, partially evaluate, and print slip programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/slip-lang/slip/compiler"
	"github.com/slip-lang/slip/manifest"
	"github.com/slip-lang/slip/server"
	"github.com/slip-lang/slip/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	dumpTokens := flag.Bool("dump-tokens", false, "Print the token stream before parsing")
	emitTree := flag.String("emit-tree", "", "Write the post-evaluation tree snapshot (CBOR) to this file")
	lspMode := flag.Bool("lsp", false, "Run the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slip [options] [program.slip]\n\n")
		fmt.Fprintf(os.Stderr, "Parses and partially evaluates a slip program, printing the tree before\n")
		fmt.Fprintf(os.Stderr, "and after evaluation. Without a program argument, the entry of a nearby\n")
		fmt.Fprintf(os.Stderr, "slip.toml runs if one exists; otherwise the program is read from stdin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("slip")

	// Resolve the program source.
	var source []byte
	switch flag.NArg() {
	case 1:
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Println("failure reading input file")
			os.Exit(1)
		}
		source = data

	case 0:
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			fmt.Println("failure")
			os.Exit(1)
		}
		if m != nil && m.Run.Entry != "" {
			log.Infof("running manifest entry %s", m.EntryPath())
			data, err := os.ReadFile(m.EntryPath())
			if err != nil {
				fmt.Println("failure reading input file")
				os.Exit(1)
			}
			source = data
			if !*dumpTokens {
				*dumpTokens = m.Run.DumpTokens
			}
			if *emitTree == "" {
				*emitTree = m.Run.EmitTree
			}
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Println("failure reading input file")
				os.Exit(1)
			}
			source = data
		}

	default:
		flag.Usage()
		os.Exit(1)
	}

	if len(source) == 0 {
		return
	}

	tokens, err := compiler.Tokenize(string(source))
	if err != nil {
		fail(err)
	}
	log.Infof("lexed %d tokens", len(tokens))

	if *dumpTokens {
		for _, tok := range tokens {
			fmt.Println(tok)
		}
	}

	tree, err := compiler.NewParser(tokens).ParseProgram()
	if err != nil {
		fail(err)
	}
	log.Infof("bound %d nodes", tree.Len())

	compiler.PrintTree(os.Stdout, tree)
	fmt.Println("success")

	val, err := vm.New(tree, os.Stdin, os.Stdout).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(val)

	compiler.PrintTree(os.Stdout, tree)

	if *emitTree != "" {
		data, err := compiler.MarshalTree(tree)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot encode tree snapshot: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*emitTree, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "cannot write tree snapshot: %v\n", err)
			os.Exit(1)
		}
		log.Infof("wrote tree snapshot to %s (%d bytes)", *emitTree, len(data))
	}
}

// fail reports a front-end diagnostic and aborts the run.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	fmt.Println("failure")
	os.Exit(1)
}
