package lex

// PosAt returns the position of byte offset off in src, where src begins at
// start. Columns advance the same way the lexer advances them.
func PosAt(start FilePos, src string, off int) FilePos {
	pos := start
	if off > len(src) {
		off = len(src)
	}
	for _, r := range src[:off] {
		switch r {
		case '\n':
			pos.Line += 1
			pos.Col = 1
		case '\t':
			pos.Col += 4
		default:
			pos.Col += 1
		}
	}
	pos.Off = start.Off + off
	return pos
}
