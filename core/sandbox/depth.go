package sandbox

import (
	"fmt"
	"go/ast"
	"sort"
	"strings"
)

const (
	DefaultMaxCallDepth = 1000

	// RecursionLimitMessage is the panic value of a call nested deeper
	// than the sandbox allows.
	RecursionLimitMessage = "maximum recursion depth exceeded"

	depthCounter = "_sandboxDepth"
	depthAtomic  = "_sandboxAtomic"
)

// guardDepth returns u.code with a depth check spliced after the opening
// brace of every function body. Crossing limit panics, so runaway
// recursion surfaces as a PanicError instead of exhausting the goroutine
// stack, which would take the whole process down. The check sits on the
// brace's line, so line numbers in compile errors are unchanged.
func guardDepth(u *unit, limit int) string {
	if limit <= 0 {
		return u.code
	}

	var braces []int
	ast.Inspect(u.file, func(n ast.Node) bool {
		switch fn := n.(type) {
		case *ast.FuncDecl:
			if fn.Body != nil {
				braces = append(braces, u.fset.Position(fn.Body.Lbrace).Offset)
			}
		case *ast.FuncLit:
			braces = append(braces, u.fset.Position(fn.Body.Lbrace).Offset)
		}
		return true
	})
	if len(braces) == 0 {
		return u.code
	}
	sort.Ints(braces)

	check := fmt.Sprintf(" defer %[1]s.AddInt64(&%[2]s, -1); if %[1]s.AddInt64(&%[2]s, 1) > %[3]d { panic(%[4]q) };",
		depthAtomic, depthCounter, limit, RecursionLimitMessage)

	pkgEnd := u.fset.Position(u.file.Name.End()).Offset

	sb := strings.Builder{}
	sb.WriteString(u.code[:pkgEnd])
	sb.WriteString(fmt.Sprintf("; import %s \"sync/atomic\"", depthAtomic))
	last := pkgEnd
	for _, b := range braces {
		sb.WriteString(u.code[last : b+1])
		sb.WriteString(check)
		last = b + 1
	}
	sb.WriteString(u.code[last:])
	sb.WriteString(fmt.Sprintf("\n\nvar %s int64\n", depthCounter))
	return sb.String()
}
