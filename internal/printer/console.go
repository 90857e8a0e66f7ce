package printer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

const ruleWidth = 80

// Console is the shared output of echoing sessions. Every block is written
// with a single write so blocks from concurrent sessions don't interleave.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a new console that writes on w.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

// PrintOutput prints the stdout block of a command and, only when stderr is
// not empty, a separate stderr block.
func (c *Console) PrintOutput(project, stdout, stderr string) {
	var b bytes.Buffer

	title := project + " output"
	writeBlock(&b, title, stdout)
	if stderr != "" {
		writeBlock(&b, project+" error output", stderr)
	}

	c.write(b.Bytes())
}

// PrintResult prints the final block of a session.
func (c *Console) PrintResult(project string, detected bool) {
	msg := "no uaf!"
	if detected {
		msg = "uaf detected!"
	}

	var b bytes.Buffer
	writeBlock(&b, project+" result", msg)
	c.write(b.Bytes())
}

// Printf prints a formatted line.
func (c *Console) Printf(format string, args ...any) {
	c.write([]byte(fmt.Sprintf(format, args...) + "\n"))
}

// Rule prints a horizontal rule with a centered title.
func (c *Console) Rule(title string) {
	c.write([]byte(RuleLine(title) + "\n"))
}

func (c *Console) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.w.Write(p)
}

func writeBlock(b *bytes.Buffer, title, body string) {
	b.WriteString("\n")
	b.WriteString(RuleLine(title))
	b.WriteString("\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(RuleLine(title))
	b.WriteString("\n")
}

// RuleLine returns a horizontal rule with a centered title.
func RuleLine(title string) string {
	if title == "" {
		return strings.Repeat("─", ruleWidth)
	}

	title = " " + title + " "
	side := (ruleWidth - len([]rune(title))) / 2
	if side < 2 {
		side = 2
	}
	return strings.Repeat("─", side) + title + strings.Repeat("─", side)
}
