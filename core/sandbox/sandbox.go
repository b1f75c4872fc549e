package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/mudler/xlog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

var (
	ErrNoFunction        = errors.New("no function definition found")
	ErrSymbolNotFound    = errors.New("function not found")
	ErrSignatureMismatch = errors.New("parameter signature mismatch")
	ErrForbiddenImport   = errors.New("forbidden import")
)

const DefaultCallTimeout = 10 * time.Second

// DefaultAllowedPackages are the stdlib packages candidate code may import.
// Nothing reaching outside the process (os, os/exec, net, syscall, unsafe)
// is allowed.
var DefaultAllowedPackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"maps",
	"math",
	"math/big",
	"path",
	"path/filepath",
	"regexp",
	"slices",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

type Option func(*Sandbox)

func WithCallTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		s.callTimeout = d
	}
}

// WithMaxCallDepth bounds how deeply interpreted functions may nest.
// Zero or less disables the check.
func WithMaxCallDepth(n int) Option {
	return func(s *Sandbox) {
		s.maxDepth = n
	}
}

func WithAllowedPackages(pkgs ...string) Option {
	return func(s *Sandbox) {
		s.allowed = map[string]bool{}
		for _, p := range pkgs {
			s.allowed[p] = true
		}
	}
}

// Sandbox compiles candidate Go functions in isolated yaegi interpreters.
// Every Compile call gets a fresh interpreter, so a patch never sees the
// symbols of the unit it replaces.
type Sandbox struct {
	allowed     map[string]bool
	callTimeout time.Duration
	maxDepth    int
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		callTimeout: DefaultCallTimeout,
		maxDepth:    DefaultMaxCallDepth,
	}
	WithAllowedPackages(DefaultAllowedPackages...)(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

type unit struct {
	fset      *token.FileSet
	file      *ast.File
	code      string
	functions []string
	imports   []string
}

var packageClauseRe = regexp.MustCompile(`^\s*package\s+\w+`)

// parseUnit places src in package main, replacing any package clause it
// carries, so its functions resolve by bare name in the interpreter.
func parseUnit(src string) (*unit, error) {
	var code string
	if packageClauseRe.MatchString(src) {
		code = packageClauseRe.ReplaceAllString(src, "package main")
	} else {
		code = fmt.Sprintf("package main\n\n%s", src)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", code, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}

	u := &unit{fset: fset, file: file, code: code}
	for _, imp := range file.Imports {
		u.imports = append(u.imports, strings.Trim(imp.Path.Value, "`\""))
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		u.functions = append(u.functions, fn.Name.Name)
	}
	return u, nil
}

// FunctionName returns the name of the first top-level function in src.
func FunctionName(src string) (string, error) {
	u, err := parseUnit(src)
	if err != nil {
		return "", err
	}
	if len(u.functions) == 0 {
		return "", ErrNoFunction
	}
	return u.functions[0], nil
}

func (s *Sandbox) ValidateImports(src string) error {
	u, err := parseUnit(src)
	if err != nil {
		return err
	}
	return s.validateImports(u)
}

func (s *Sandbox) validateImports(u *unit) error {
	var forbidden []string
	for _, pkg := range u.imports {
		if !s.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("%w: %s", ErrForbiddenImport, strings.Join(forbidden, ", "))
	}
	return nil
}

// Compile evaluates src and returns its first top-level function.
func (s *Sandbox) Compile(ctx context.Context, src string) (*Function, error) {
	name, err := FunctionName(src)
	if err != nil {
		return nil, err
	}
	return s.CompileNamed(ctx, src, name)
}

// CompileNamed evaluates src and returns the function called name.
// Evaluation runs package-level initializers, so it is bounded by ctx and
// the call timeout.
func (s *Sandbox) CompileNamed(ctx context.Context, src, name string) (*Function, error) {
	u, err := parseUnit(src)
	if err != nil {
		return nil, err
	}
	if err := s.validateImports(u); err != nil {
		return nil, err
	}

	found := false
	for _, f := range u.functions {
		if f == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	if _, err := i.EvalWithContext(ctx, guardDepth(u, s.maxDepth)); err != nil {
		return nil, fmt.Errorf("code evaluation failed: %w", err)
	}

	v, err := i.Eval(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, name, err)
	}
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is not a function", ErrSymbolNotFound, name)
	}

	xlog.Debug("Compiled function", "name", name, "type", v.Type().String())

	return &Function{
		name:    name,
		source:  src,
		fn:      v,
		timeout: s.callTimeout,
	}, nil
}

// SameParameters reports whether a and b accept the same parameter list.
// Result types are not compared: a patch may change what it returns.
func SameParameters(a, b reflect.Type) bool {
	if a.NumIn() != b.NumIn() || a.IsVariadic() != b.IsVariadic() {
		return false
	}
	for i := 0; i < a.NumIn(); i++ {
		if a.In(i).String() != b.In(i).String() {
			return false
		}
	}
	return true
}
