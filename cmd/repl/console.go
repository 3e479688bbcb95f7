package main

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/brunokim/prolog-wam/config"
	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/solver"
)

// lineReader is the subset of *readline.Instance used by the console.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	SaveHistory(content string) error
}

// scanReader reads lines from a non-interactive input.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(r)}
}

func (r *scanReader) Readline() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) SetPrompt(prompt string)          {}
func (r *scanReader) SaveHistory(content string) error { return nil }

// lineInput adapts a lineReader to the io.Reader used by readln.
type lineInput struct {
	r   lineReader
	buf []byte
}

func (in *lineInput) Read(p []byte) (int, error) {
	if len(in.buf) == 0 {
		in.r.SetPrompt("")
		line, err := in.r.Readline()
		if err != nil {
			return 0, io.EOF
		}
		in.buf = []byte(line + "\n")
	}
	n := copy(p, in.buf)
	in.buf = in.buf[n:]
	return n, nil
}

type console struct {
	solver *solver.Solver
	reader lineReader
	out    io.Writer
	// enumerate shows every solution without asking.
	enumerate bool
}

func (c *console) println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

func (c *console) mainLoop(initial string) {
	if initial != "" && !c.execute(initial) {
		return
	}
	for {
		text, ok := c.readQuery()
		if !ok || !c.execute(text) {
			break
		}
	}
	c.println("Goodbye!")
}

var commands = map[string]bool{
	"exit":       true,
	"help":       true,
	"labels":     true,
	"list":       true,
	"new":        true,
	"procedures": true,
	"quit":       true,
	"set":        true,
}

func isCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && commands[fields[0]]
}

// readQuery reads lines until a command or a line ending with '.'.
func (c *console) readQuery() (string, bool) {
	c.reader.SetPrompt("?- ")
	var lines []string
	for {
		line, err := c.reader.Readline()
		if err != nil {
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(lines) == 0 && isCommand(line) {
			return line, true
		}
		lines = append(lines, line)
		if !strings.HasSuffix(line, ".") {
			c.reader.SetPrompt("|  ")
			continue
		}
		break
	}
	text := strings.Join(lines, "\n")
	c.reader.SaveHistory(strings.Join(lines, " "))
	return text, true
}

var (
	setValueRE = regexp.MustCompile(`^set\s+([A-Za-z_]+)\s*=(.+)$`)
	getValueRE = regexp.MustCompile(`^set\s+([A-Za-z_]+)\s*$`)
)

// execute runs a command or a query. It returns false to quit.
func (c *console) execute(text string) bool {
	text = strings.TrimSpace(text)
	switch text {
	case "quit", "exit":
		return false
	case "help":
		c.showHelp()
	case "set":
		cfg := c.solver.Config()
		for _, key := range config.Keys {
			c.println(cfg.Describe(key))
		}
	case "labels":
		for _, label := range c.solver.Labels() {
			c.println(label)
		}
	case "procedures":
		for _, name := range c.solver.Procedures() {
			c.println(name)
		}
	case "list":
		p := c.solver.Program()
		if p.Len() == 0 {
			c.println("No program in memory.")
		} else {
			c.println(p.String())
		}
	case "new":
		c.solver.Reset()
		c.println("Memory cleared.")
	default:
		if strings.HasPrefix(text, "set ") {
			c.set(text)
		} else {
			c.runQuery(text)
		}
	}
	return true
}

func (c *console) set(text string) {
	if m := setValueRE.FindStringSubmatch(text); m != nil {
		err := c.solver.Set(m[1], m[2])
		switch {
		case errors.Is(err, config.ErrUnknownSetting):
			c.println("Unknown internal variable.")
		case err != nil:
			c.println("An error occurred. Illegal query.")
		default:
			cfg := c.solver.Config()
			c.println(cfg.Describe(m[1]))
		}
		return
	}
	if m := getValueRE.FindStringSubmatch(text); m != nil {
		cfg := c.solver.Config()
		c.println(cfg.Describe(m[1]))
		return
	}
	c.println("Illegal query.")
}

func (c *console) runQuery(text string) {
	// The stream holds the solver until it's closed.
	cfg := c.solver.Config()
	stream, err := c.solver.Query(text)
	if err != nil {
		// The solver already reported the illegal query.
		return
	}
	defer stream.Close()
	if cfg.Debug > 1 {
		c.println("----- BEGIN QUERYCODE -----")
		c.println(stream.Code().String())
		c.println("------ END QUERYCODE ------")
	}
	for {
		sol, ok := stream.Next()
		if !ok {
			return
		}
		if cfg.Benchmark {
			c.println(fmt.Sprintf("Total time elapsed: %.3f ms. Statements: %d. Backtracks: %d.",
				float64(sol.Elapsed.Microseconds())/1000, sol.OpCount, sol.BacktrackCount))
		}
		if !sol.Succeed || !stream.HasMore() || c.enumerate {
			continue
		}
		if !c.askMore() {
			return
		}
	}
}

func (c *console) askMore() bool {
	fmt.Fprint(c.out, "More? ([y]es/[n]o) ")
	c.reader.SetPrompt("")
	answer, err := c.reader.Readline()
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (c *console) showHelp() {
	fmt.Fprint(c.out, helpText)
	c.println(fmt.Sprintf("%d lines of code in memory.", c.solver.Program().Len()))
}

const helpText = `This is Stu's mighty WAM speaking. Need some help?

Available commands:
exit                    terminates the WAM
help                    displays this help
list                    lists the WAM program currently in memory
new                     removes all WAM code from memory
set [PARAM[=VALUE]]     displays all internal parameters ("set") or lets
                        the user set a parameter's new value, respectively
labels                  displays all labels that can be found in memory
procedures              displays the names of all procedures in memory
quit                    terminates the WAM

Prolog programs can be compiled into memory by typing "consult(filename).",
e.g. "consult('lists.pro').". Existing WAM programs can be loaded into
memory by typing "load(filename).".
`
