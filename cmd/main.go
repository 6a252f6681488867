package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/basecode-lang/foundation"
)

func main() {
	var (
		scriptPath = flag.String("script", "", "Path to a Scheme source file; omitted means REPL mode")
		compile    = flag.Bool("compile", false, "Run through the IR/encoder/VM pipeline instead of the tree-walking evaluator")
		dumpAsm    = flag.Bool("dump-asm", false, "Print the disassembled program instead of running it")
		gcTrace    = flag.Bool("gc-trace", false, "Log each GC cycle")
		cells      = flag.Int("cells", 4096, "Object arena size, in cells")
	)
	flag.Parse()

	cfg := scm.NewConfig()
	cfg.SetBool("heap.gc_trace", *gcTrace)
	cfg.SetInt("heap.cells", *cells)

	ctx := scm.NewContext(*cells, cfg)
	defer ctx.Close()

	if *scriptPath == "" {
		repl(ctx)
		return
	}

	src, err := os.ReadFile(*scriptPath)
	if err != nil {
		log.Fatalf("can't read script: %s", err)
	}

	if *compile || *dumpAsm {
		prog, err := ctx.CompileString(string(src))
		if err != nil {
			log.Fatalf("compile error: %s", err)
		}
		if *dumpAsm {
			fmt.Print(prog.HighlightPrettyString())
			return
		}
		result, err := ctx.RunProgram(prog)
		if err != nil {
			log.Fatalf("runtime error: %s", err)
		}
		fmt.Println(ctx.Write(result))
		return
	}

	result, err := ctx.EvalString(string(src))
	if err != nil {
		log.Fatalf("eval error: %s", err)
	}
	fmt.Println(ctx.Write(result))
}

func repl(ctx *scm.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("scm> ")
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			if result, err := ctx.EvalString(line); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println(ctx.Write(result))
			}
		}
		fmt.Print("scm> ")
	}
}
