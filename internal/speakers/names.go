package speakers

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"parallelmind/internal/domain"
)

// mapping renames one diarized speaker label.
type mapping interface {
	Rename(label string) (name string, ok bool)
}

// LineParser turns one line of a names file into a mapping.
type LineParser interface {
	CanParse(line string) bool
	Parse(line string) (mapping, error)
}

// Names maps the backend's speaker labels (SPEAKER_00, ...) to display
// names. A nil *Names leaves labels unchanged.
type Names struct {
	mappings []mapping
}

// Load reads a names file. An empty path or a missing file yields no
// mappings.
//
//	SPEAKER_00 => Alice
//	s/^SPEAKER_0*(\d+)$/Guest $1/
func Load(path string) (*Names, error) {
	return LoadWithParsers(path, defaultParsers())
}

// LoadWithParsers allows extra line formats.
func LoadWithParsers(path string, parsers []LineParser) (*Names, error) {
	if len(parsers) == 0 {
		parsers = defaultParsers()
	}
	if strings.TrimSpace(path) == "" {
		return &Names{}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Names{}, nil
		}
		return nil, fmt.Errorf("read speaker names %q: %w", path, err)
	}

	mappings, err := parse(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("parse speaker names %q: %w", path, err)
	}
	return &Names{mappings: mappings}, nil
}

// Len reports how many mappings were loaded.
func (n *Names) Len() int {
	if n == nil {
		return 0
	}
	return len(n.mappings)
}

// Label returns the display name for label. The first matching line wins.
func (n *Names) Label(label string) string {
	if n == nil {
		return label
	}
	for _, m := range n.mappings {
		if name, ok := m.Rename(label); ok {
			return name
		}
	}
	return label
}

// Segments returns a copy of segments with display names applied.
func (n *Names) Segments(segments []domain.Segment) []domain.Segment {
	if n.Len() == 0 || len(segments) == 0 {
		return segments
	}
	out := make([]domain.Segment, len(segments))
	for i, seg := range segments {
		seg.SpeakerLabel = n.Label(seg.SpeakerLabel)
		out[i] = seg
	}
	return out
}

// Conversation returns conv with display names applied to its transcript.
func (n *Names) Conversation(conv domain.Conversation) domain.Conversation {
	conv.Segments = n.Segments(conv.Segments)
	return conv
}

func parse(contents string, parsers []LineParser) ([]mapping, error) {
	lines := strings.Split(contents, "\n")
	mappings := make([]mapping, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var parsed mapping
		for _, parser := range parsers {
			if !parser.CanParse(line) {
				continue
			}
			m, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			parsed = m
			break
		}
		if parsed == nil {
			return nil, fmt.Errorf("line %d: unsupported format", index+1)
		}
		mappings = append(mappings, parsed)
	}
	return mappings, nil
}

func defaultParsers() []LineParser {
	return []LineParser{patternParser{}, aliasParser{}}
}

type aliasParser struct{}

func (aliasParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (aliasParser) Parse(line string) (mapping, error) {
	return parseAlias(line)
}

// alias matches a label exactly, ignoring case.
type alias struct {
	label string
	name  string
}

func parseAlias(line string) (mapping, error) {
	label, name, _ := strings.Cut(line, "=>")
	label = strings.TrimSpace(label)
	name = strings.TrimSpace(name)
	if label == "" {
		return nil, errors.New("speaker label cannot be empty")
	}
	if name == "" {
		return nil, errors.New("display name cannot be empty")
	}
	return alias{label: label, name: name}, nil
}

func (a alias) Rename(label string) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(label), a.label) {
		return a.name, true
	}
	return "", false
}

type patternParser struct{}

func (patternParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}

func (patternParser) Parse(line string) (mapping, error) {
	return parsePattern(line)
}

// pattern rewrites labels matching a regular expression. Matching is
// case-insensitive unless the I flag is given.
type pattern struct {
	re          *regexp.Regexp
	replacement string
}

func parsePattern(line string) (mapping, error) {
	delim := line[1]
	expr, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement: %w", err)
	}

	ignoreCase := true
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'I':
			ignoreCase = false
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	if ignoreCase {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return pattern{re: re, replacement: replacement}, nil
}

func (p pattern) Rename(label string) (string, bool) {
	if !p.re.MatchString(label) {
		return "", false
	}
	return p.re.ReplaceAllString(label, p.replacement), true
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		if escaped {
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == delim {
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}
