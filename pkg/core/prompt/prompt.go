package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// MaxRetries is how many invalid answers Choose accepts before skipping.
const MaxRetries = 3

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type line struct {
	text string
	err  error
}

// Prompter asks questions on out and reads answers from in. A single
// goroutine owns the reader, so a prompt abandoned through its context
// leaves the input stream intact for the next one.
type Prompter struct {
	in             io.Reader
	out            io.Writer
	nonInteractive bool

	once  sync.Once
	lines chan line
}

// New creates a Prompter. With nonInteractive set every question is answered
// with its default without reading input.
func New(in io.Reader, out io.Writer, nonInteractive bool) *Prompter {
	return &Prompter{in: in, out: out, nonInteractive: nonInteractive}
}

// NonInteractive reports whether prompts auto-accept their defaults.
func (p *Prompter) NonInteractive() bool {
	return p.nonInteractive
}

func (p *Prompter) start() {
	p.lines = make(chan line)
	go func() {
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- line{text: scanner.Text()}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		for {
			p.lines <- line{err: err}
		}
	}()
}

// ReadLine prints label and waits for one line of input.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	p.once.Do(p.start)
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case l := <-p.lines:
		return strings.TrimSpace(l.text), l.err
	}
}

// Choose shows rows as a numbered table and asks for one of them. It returns
// the chosen index and true, or false when the user skips, gives up after
// MaxRetries invalid answers, or input ends. An empty answer picks def.
func (p *Prompter) Choose(ctx context.Context, title string, headers []string, rows [][]string, def int) (int, bool, error) {
	if len(rows) == 0 {
		return 0, false, nil
	}
	if def < 0 || def >= len(rows) {
		def = 0
	}
	if p.nonInteractive {
		return def, true, nil
	}

	numbered := make([][]string, len(rows))
	for i, row := range rows {
		numbered[i] = append([]string{strconv.Itoa(i + 1)}, row...)
	}
	aligns := []Alignment{AlignRight}
	fmt.Fprintln(p.out, title)
	fmt.Fprintln(p.out, RenderTable(append([]string{"#"}, headers...), numbered, aligns))

	label := fmt.Sprintf("Choose [1-%d] (default %d, 's' to skip): ", len(rows), def+1)
	for attempt := 0; attempt < MaxRetries; attempt++ {
		answer, err := p.ReadLine(ctx, label)
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return def, true, nil
		case "s", "skip":
			return 0, false, nil
		}

		n, convErr := strconv.Atoi(answer)
		if convErr != nil {
			fmt.Fprintf(p.out, "  Invalid input. Enter a number 1-%d, or 's' to skip.\n", len(rows))
			continue
		}
		if n < 1 || n > len(rows) {
			fmt.Fprintf(p.out, "  Out of range 1-%d. Try again.\n", len(rows))
			continue
		}
		return n - 1, true, nil
	}

	fmt.Fprintln(p.out, "  Too many invalid attempts, skipping.")
	return 0, false, nil
}

// Confirm asks a yes/no question. Anything but y/yes is no; in
// non-interactive mode the answer is always no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if p.nonInteractive {
		return false, nil
	}
	answer, err := p.ReadLine(ctx, question+" (y/n): ")
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
