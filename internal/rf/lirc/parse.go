package lirc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Section is one begin/end block of a definition file.
type Section struct {
	Name string

	// Values holds the last value seen for each key.
	Values map[string]string

	// Keys lists keys in first-seen order.
	Keys []string

	// Sections holds nested blocks by name.
	Sections map[string]*Section
}

func newSection(name string) *Section {
	return &Section{
		Name:     name,
		Values:   make(map[string]string),
		Sections: make(map[string]*Section),
	}
}

func (s *Section) set(key, value string) {
	if _, ok := s.Values[key]; !ok {
		s.Keys = append(s.Keys, key)
	}
	s.Values[key] = value
}

// Parse reads a definition into its section tree. The returned root
// section has an empty name; "begin remote" blocks appear under
// root.Sections["remote"].
//
// Blank lines and '#' comments are skipped. Lines without a value are
// ignored.
func Parse(r io.Reader) (*Section, error) {
	root := newSection("")
	stack := []*Section{root}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		current := stack[len(stack)-1]

		switch fields[0] {
		case "begin":
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "begin"))
			child := newSection(name)
			current.Sections[name] = child
			stack = append(stack, child)
		case "end":
			if len(stack) == 1 {
				return nil, fmt.Errorf("%w: line %d: end without begin", ErrSyntax, lineNo)
			}
			stack = stack[:len(stack)-1]
		default:
			if len(fields) < 2 {
				continue
			}
			value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
			current.set(fields[0], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("%w: unterminated block %q", ErrSyntax, stack[len(stack)-1].Name)
	}
	return root, nil
}

// ParseFile parses the definition file at path.
func ParseFile(path string) (*Section, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("opening definition: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file
	return Parse(f)
}
