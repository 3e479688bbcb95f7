package wam

import (
	"bufio"
	"io"
)

// WriteTo writes p as bytecode text, one statement per line. The output
// can be read back with ReadProgram.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, s := range p.statements {
		k, err := bw.WriteString(s.Dump() + "\n")
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
