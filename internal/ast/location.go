package ast

import (
	"fmt"

	"github.com/google/uuid"
)

// Location is (source origin, byte offset, length) per §3.1, plus the
// literal text it denotes so identifier equality and fresh-name
// generation can both use it directly.
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
	Length int
	Text   string
}

// View returns the text this location denotes; used when comparing two
// Var/LocalRef nodes by identifier name.
func (l Location) View() string { return l.Text }

func (l Location) String() string {
	if l.File == "" {
		return l.Text
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Fresh yields a Location whose View() is unique within the whole AST,
// used for temporaries introduced by lowering passes (lifted ref heads,
// synthetic query rules, enumeration item locals). Suffixing with a uuid
// rather than a process-global counter means two independently compiled
// ASTs can be merged (merge_modules, §4.4 step 23) without their
// temporaries colliding.
func Fresh(hint string) Location {
	return Location{File: "<fresh>", Text: hint + "$" + uuid.New().String()[:8]}
}
