// Package fuzz is the entry point for go-fuzz style fuzzers.
package fuzz

import (
	"bytes"

	"github.com/brunokim/prolog-wam/parser"
	"github.com/brunokim/prolog-wam/wam"
	"github.com/brunokim/prolog-wam/wam/compiler"
)

// Fuzz parses data as a program, compiles it and checks that the bytecode
// can be read back.
func Fuzz(data []byte) int {
	clauses, err := parser.ParseProgram(string(data))
	if err != nil {
		return 0
	}
	p := compiler.Compile(clauses)
	var b bytes.Buffer
	if _, err := p.WriteTo(&b); err != nil {
		panic(err)
	}
	q, err := wam.ReadProgram(&b)
	if err != nil {
		panic(err)
	}
	if q.Len() != p.Len() {
		panic("bytecode length mismatch")
	}
	return 1
}
