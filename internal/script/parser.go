package script

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single script line.
const maxLineSize = 1 << 20

// Command is one parsed script line.
type Command struct {
	// Action is the uppercased first token.
	Action string
	Args   []string
	// Line is the 1-indexed source line.
	Line int
	// Raw is the trimmed source text, used in diagnostics.
	Raw string
}

func (c Command) String() string {
	return fmt.Sprintf("line %d: %s", c.Line, c.Raw)
}

// Parse reads a script and returns its commands in document order. Blank
// lines and lines starting with '#' are skipped.
func Parse(r io.Reader) ([]Command, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var commands []Command
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if lineNo == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		line := strings.TrimSpace(text)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := Tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		commands = append(commands, Command{
			Action: strings.ToUpper(tokens[0]),
			Args:   tokens[1:],
			Line:   lineNo,
			Raw:    line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script at line %d: %w", lineNo+1, err)
	}
	return commands, nil
}

// ParseString is Parse over an in-memory script.
func ParseString(s string) ([]Command, error) {
	return Parse(strings.NewReader(s))
}
