package sqlrun

import "strings"

// SplitStatements splits a script on top-level semicolons. Semicolons inside
// string literals, quoted identifiers, comments and trigger bodies do not split.
// Empty statements are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func(force bool) {
		stmt := strings.TrimSpace(current.String())
		if stmt == "" || stmt == ";" {
			current.Reset()
			return
		}
		if !force && isOpenTrigger(stmt) {
			return
		}
		out = append(out, stmt)
		current.Reset()
	}

	n := len(script)
	for i := 0; i < n; i++ {
		ch := script[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := skipQuoted(script, i, ch)
			current.WriteString(script[i:end])
			i = end - 1
		case ch == '[':
			end := strings.IndexByte(script[i:], ']')
			if end < 0 {
				current.WriteString(script[i:])
				i = n
				continue
			}
			current.WriteString(script[i : i+end+1])
			i += end
		case ch == '-' && i+1 < n && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				i = n
				continue
			}
			current.WriteByte('\n')
			i += end
		case ch == '/' && i+1 < n && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = n
				continue
			}
			current.WriteByte(' ')
			i += end + 3
		case ch == ';':
			current.WriteByte(';')
			flush(false)
		default:
			current.WriteByte(ch)
		}
	}
	flush(true)
	return out
}

// skipQuoted returns the index just past the literal starting at start.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// isOpenTrigger reports whether stmt is a CREATE TRIGGER whose BEGIN ... END
// body has not been closed yet.
func isOpenTrigger(stmt string) bool {
	words := strings.Fields(strings.ToUpper(stmt))
	if len(words) < 2 || words[0] != "CREATE" {
		return false
	}
	isTrigger := false
	for _, w := range words[1:min(len(words), 4)] {
		if w == "TRIGGER" {
			isTrigger = true
			break
		}
	}
	if !isTrigger {
		return false
	}
	last := strings.TrimRight(words[len(words)-1], ";")
	return last != "END"
}
