package boot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ember/catalog"
)

// adminEntries is the fixed tail of every menu, in render order.
var adminEntries = []struct {
	label  string
	choice AdminChoice
}{
	{"Advanced options", AdminAdvancedOptions},
	{"Remote interface", AdminRemoteInterface},
	{"Restart tests", AdminRestartTests},
	{"Shutdown", AdminShutdown},
}

// ConsoleSelector renders the menu on a writer and reads numbered picks
// from a reader, the local display and keypad in production.
type ConsoleSelector struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewConsoleSelector creates a selector reading from in and writing to out.
func NewConsoleSelector(in io.Reader, out io.Writer) *ConsoleSelector {
	return &ConsoleSelector{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Select renders the ordered entries plus the administrative choices and
// blocks for one selection. Input that is not a number in range is an
// error; the engine re-renders the menu on error.
func (c *ConsoleSelector) Select(ctx context.Context, entries []catalog.OSEntry) (Selection, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Select an operating system:")
	for i, e := range entries {
		marker := " "
		if !e.Bootable {
			marker = "!"
		}
		fmt.Fprintf(c.out, "  %2d%s %s (%s)\n", i+1, marker, e.Name, e.Category)
	}
	for i, a := range adminEntries {
		fmt.Fprintf(c.out, "  %2d  %s\n", len(entries)+i+1, a.label)
	}
	fmt.Fprint(c.out, "> ")

	line, err := c.readLine(ctx)
	if err != nil {
		return Selection{}, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return Selection{}, fmt.Errorf("not a menu number: %q", line)
	}
	switch {
	case n >= 1 && n <= len(entries):
		return Selection{OS: &entries[n-1]}, nil
	case n > len(entries) && n <= len(entries)+len(adminEntries):
		return Selection{Admin: adminEntries[n-len(entries)-1].choice}, nil
	default:
		return Selection{}, fmt.Errorf("selection %d out of range", n)
	}
}

func (c *ConsoleSelector) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if c.scanner.Scan() {
			ch <- result{line: c.scanner.Text()}
			return
		}
		err := c.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
