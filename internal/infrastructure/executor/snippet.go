package executor

import (
	"errors"
	"go/scanner"
	"go/token"
	"strings"
)

// errGoroutine is returned for fragments with a go statement. A panic on a
// goroutine the fragment starts cannot be recovered by the interpreter.
var errGoroutine = errors.New("go statements are not permitted in fragments")

// statement is one top-level statement or declaration of a fragment body.
type statement struct {
	text string
	decl bool
	fn   bool
}

// splitStatements cuts src at top-level statement boundaries using the Go
// tokenizer, so semicolons inside strings, comments and blocks do not count.
// It also reports whether src contains a go statement anywhere.
func splitStatements(src string) ([]statement, bool) {
	fset := token.NewFileSet()
	file := fset.AddFile("fragment.go", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	var (
		stmts []statement
		toks  []token.Token
		depth int
		hasGo bool
	)
	start := -1
	flush := func(end int) {
		if start >= 0 && len(toks) > 0 {
			if text := strings.TrimSpace(src[start:end]); text != "" {
				stmts = append(stmts, classifyStatement(text, toks))
			}
		}
		start = -1
		toks = toks[:0]
	}

	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			flush(len(src))
			break
		}
		offset := file.Offset(pos)
		if tok == token.SEMICOLON && depth == 0 && !(lit == ";" && hasHeader(toks)) {
			flush(offset)
			continue
		}
		if start < 0 {
			start = offset
		}
		toks = append(toks, tok)
		switch tok {
		case token.GO:
			hasGo = true
		case token.LPAREN, token.LBRACE, token.LBRACK:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACK:
			if depth > 0 {
				depth--
			}
		}
	}
	return stmts, hasGo
}

// hasHeader reports whether the statement so far is a for, if or switch whose
// header may hold explicit semicolons.
func hasHeader(toks []token.Token) bool {
	if len(toks) == 0 {
		return false
	}
	switch toks[0] {
	case token.FOR, token.IF, token.SWITCH:
		return true
	}
	return false
}

func classifyStatement(text string, toks []token.Token) statement {
	st := statement{text: text}
	switch toks[0] {
	case token.VAR, token.CONST, token.TYPE:
		st.decl = true
	case token.FUNC:
		st.fn = isFuncDecl(toks)
		st.decl = st.fn
	}
	return st
}

// isFuncDecl tells `func name(` and `func (r T) name(` apart from a
// function literal that is called in place.
func isFuncDecl(toks []token.Token) bool {
	if len(toks) < 2 {
		return false
	}
	if toks[1] == token.IDENT {
		return true
	}
	if toks[1] != token.LPAREN {
		return false
	}
	depth := 0
	for i := 1; i < len(toks); i++ {
		switch toks[i] {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				return i+2 < len(toks) && toks[i+1] == token.IDENT &&
					(toks[i+2] == token.LPAREN || toks[i+2] == token.LBRACK)
			}
		}
	}
	return false
}

// hoistDeclarations moves the leading declarations and every function
// declaration ahead of the statements. The interpreter evaluates the first
// part at package level and the second as a function body.
func hoistDeclarations(stmts []statement) (string, string) {
	var decls, rest []string
	leading := true
	for _, st := range stmts {
		switch {
		case st.fn, leading && st.decl:
			decls = append(decls, st.text)
		default:
			leading = false
			rest = append(rest, st.text)
		}
	}
	return strings.Join(decls, "\n"), strings.Join(rest, "\n")
}
