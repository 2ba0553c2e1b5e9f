//go:build !cgo

package parse

// tree-sitter needs cgo; without it only the native backend exists.
const haveTreeSitter = false

func newTreeSitter() Parser {
	return nil
}
