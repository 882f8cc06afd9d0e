package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// console prints status messages to a terminal instead of a chat.
// Edits are printed as new lines tagged with the message they replace.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	nextID int64
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) SendMessage(_ context.Context, _ string, text string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	_, err := fmt.Fprintf(c.out, "[%d] %s\n", c.nextID, flatten(text))
	return c.nextID, err
}

func (c *console) EditMessage(_ context.Context, _ string, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%d] %s\n", messageID, flatten(text))
	return err
}

var markdown = strings.NewReplacer("*", "", "\\_", "_", "\\*", "*", "\\`", "`", "\\[", "[")

// flatten renders a chat message on one line without Markdown markers.
func flatten(text string) string {
	fields := strings.Fields(strings.ReplaceAll(text, "\n", " "))
	return markdown.Replace(strings.Join(fields, " "))
}
