package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
)

// ScriptRunner evaluates interpreted fragments with yaegi. Each run gets a
// fresh interpreter loaded with only the symbol tables of its class.
type ScriptRunner struct{}

// NewScriptRunner returns a ScriptRunner.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{}
}

// Run evaluates src under the capability of class and returns everything the
// fragment wrote to stdout and stderr. When ctx expires the interpreter is
// asked to stop and abandoned.
func (r *ScriptRunner) Run(ctx context.Context, class Class, src string) (string, error) {
	capability, ok := CapabilityFor(class)
	if !ok {
		return "", fmt.Errorf("class %s is not interpreted", class)
	}
	if _, hasGo := splitStatements(src); hasGo {
		return "", errGoroutine
	}
	prog := parseProgram(src)
	for _, spec := range prog.imports {
		if !capability.Allows(spec.path) {
			return "", fmt.Errorf("import %q is not permitted", spec.path)
		}
	}

	out := &lockedBuffer{}
	i := interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := i.Use(capability.exports); err != nil {
		return "", fmt.Errorf("load symbols: %w", err)
	}

	if prog.full {
		_, err := i.EvalWithContext(ctx, src)
		return out.String(), err
	}

	// Imports and statements are evaluated separately: yaegi treats source
	// that starts with an import as a file, and anything else as a function body.
	if imports := prog.resolveImports(capability); len(imports) > 0 {
		if _, err := i.EvalWithContext(ctx, renderImports(imports)); err != nil {
			return out.String(), err
		}
	}
	if strings.TrimSpace(prog.body) == "" {
		return out.String(), nil
	}

	// A body that starts with a declaration would be read as a file, so
	// declarations go in first and the statements follow in their own pass.
	stmts, _ := splitStatements(prog.body)
	decls, rest := hoistDeclarations(stmts)
	if decls == "" {
		_, err := i.EvalWithContext(ctx, prog.body)
		return out.String(), err
	}
	if _, err := i.EvalWithContext(ctx, decls); err != nil {
		return out.String(), err
	}
	if rest == "" {
		return out.String(), nil
	}
	_, err := i.EvalWithContext(ctx, rest)
	return out.String(), err
}

type importSpec struct {
	alias string
	path  string
}

type program struct {
	full    bool
	imports []importSpec
	body    string
}

// parseProgram splits the leading import declarations from the statements.
func parseProgram(src string) program {
	var prog program
	lines := strings.Split(src, "\n")
	inBlock := false
	i := 0
scan:
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "//"):
			continue
		case inBlock:
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			if spec, ok := parseImportSpec(trimmed); ok {
				prog.imports = append(prog.imports, spec)
			}
			continue
		case strings.HasPrefix(trimmed, "package "):
			prog.full = true
			continue
		case strings.HasPrefix(trimmed, "import ("), trimmed == "import(":
			inBlock = true
			continue
		case strings.HasPrefix(trimmed, "import "):
			if spec, ok := parseImportSpec(strings.TrimPrefix(trimmed, "import ")); ok {
				prog.imports = append(prog.imports, spec)
			}
			continue
		}
		break scan
	}
	prog.body = strings.Join(lines[i:], "\n")
	return prog
}

func parseImportSpec(s string) (importSpec, bool) {
	if idx := strings.Index(s, "//"); idx >= 0 {
		s = s[:idx]
	}
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	switch len(fields) {
	case 1:
		return importSpec{path: strings.Trim(fields[0], "\"`")}, true
	case 2:
		return importSpec{alias: fields[0], path: strings.Trim(fields[1], "\"`")}, true
	default:
		return importSpec{}, false
	}
}

// resolveImports adds the class packages the body references without
// importing them, so fragments like `fmt.Println(files.List("."))` work as is.
func (p program) resolveImports(capability Capability) []importSpec {
	imports := append([]importSpec(nil), p.imports...)
	seen := make(map[string]bool, len(imports))
	for _, spec := range imports {
		seen[spec.path] = true
	}
	for _, path := range capability.Packages() {
		if seen[path] {
			continue
		}
		if referencesPackage(p.body, capability.name(path)) {
			imports = append(imports, importSpec{path: path})
			seen[path] = true
		}
	}
	return imports
}

func renderImports(imports []importSpec) string {
	var b strings.Builder
	b.WriteString("import (\n")
	for _, spec := range imports {
		if spec.alias != "" {
			fmt.Fprintf(&b, "\t%s %q\n", spec.alias, spec.path)
			continue
		}
		fmt.Fprintf(&b, "\t%q\n", spec.path)
	}
	b.WriteString(")")
	return b.String()
}

// referencesPackage reports whether body contains name followed by a selector
// and not preceded by an identifier character.
func referencesPackage(body, name string) bool {
	needle := name + "."
	for offset := 0; ; {
		idx := strings.Index(body[offset:], needle)
		if idx < 0 {
			return false
		}
		pos := offset + idx
		if pos == 0 || !isIdentByte(body[pos-1]) {
			return true
		}
		offset = pos + len(needle)
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// lockedBuffer is shared between the caller and an interpreter goroutine that
// may outlive a timed-out run.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
