package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is the structured diagnostic returned by Parse. It never
// panics its way out; every rejection path returns one of these identifying
// the offending line (spec §4.1 contract, §7 "parse error" taxonomy entry).
type ParseError struct {
	Line    int
	Text    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("shader: line %d: %s: %q", e.Line, e.Message, e.Text)
}

func errAt(line int, text, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Text: text, Message: fmt.Sprintf(format, args...)}
}

// token is a lexed opcode-with-modifier or register token. The lexer does
// not interpret register syntax; that belongs to the parser, which knows
// the positional context (destination vs. source).
type token struct {
	text string
}

// splitLine strips comments (';' or "//") and trailing whitespace, returning
// "" for blank/comment-only lines.
func splitLine(raw string) string {
	line := raw
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// lexInstruction splits an instruction line into its opcode[_modifier] head
// and comma-separated register operand tokens.
func lexInstruction(line string) (opcodeTok string, modTok string, operands []token, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", nil, fmt.Errorf("empty instruction")
	}
	head := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, head))

	opcodeTok = head
	if idx := strings.IndexByte(head, '_'); idx >= 0 {
		opcodeTok = head[:idx]
		modTok = head[idx+1:]
	}

	if rest == "" {
		return opcodeTok, modTok, nil, nil
	}
	parts := strings.Split(rest, ",")
	operands = make([]token, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", "", nil, fmt.Errorf("empty operand")
		}
		operands = append(operands, token{text: p})
	}
	return opcodeTok, modTok, operands, nil
}

// parseVersionHeader recognizes `vs.M.N` or `ps.M.N`.
func parseVersionHeader(line string) (kind Kind, major, minor int, ok bool) {
	line = strings.ToLower(strings.TrimSpace(line))
	var prefix string
	switch {
	case strings.HasPrefix(line, "vs."):
		prefix, kind = "vs.", KindVertex
	case strings.HasPrefix(line, "ps."):
		prefix, kind = "ps.", KindPixel
	default:
		return 0, 0, 0, false
	}
	rest := strings.TrimPrefix(line, prefix)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, 0, false
	}
	nums := strings.SplitN(fields[0], ".", 2)
	if len(nums) != 2 {
		return 0, 0, 0, false
	}
	m, err1 := strconv.Atoi(nums[0])
	n, err2 := strconv.Atoi(nums[1])
	if err1 != nil || err2 != nil {
		return 0, 0, 0, false
	}
	return kind, m, n, true
}

// registerTypePrefixes maps a leading letter (after a possible '-') to a
// register type, for the common single-letter sigils. 'o' is disambiguated
// by parseRegisterBody since it has several sub-forms
// (oPos, oFog, oPts, oD#, oT#, oC#).
var registerTypePrefixes = map[byte]RegisterType{
	'r': RegTemp,
	'v': RegInput,
	'c': RegConst,
	'a': RegAddr,
	't': RegTexture,
}
