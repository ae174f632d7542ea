// Package codeblock extracts fenced code blocks and links from model replies.
package codeblock

import (
	"regexp"
	"strings"

	"github.com/doeshing/vrelay/internal/domain"
)

var (
	fencePattern = regexp.MustCompile("(?s)```([A-Za-z]*)[ \t]*\r?\n(.*?)```")
	linkPattern  = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `)\]]+`)
)

// Block is one fenced code block.
type Block struct {
	Tag      string
	Code     string
	Language domain.Language
}

// Fragment converts the block into a code fragment.
func (b Block) Fragment() domain.CodeFragment {
	return domain.NewFragment(b.Code, b.Language)
}

// All returns every fenced block in order. Blocks whose tag names a language
// that cannot be run (e.g. ```json) are skipped.
func All(text string) []Block {
	var blocks []Block
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		code := strings.TrimSpace(m[2])
		if code == "" {
			continue
		}
		lang, ok := domain.ParseLanguage(tag)
		if tag != "" && !ok {
			continue
		}
		if tag == "" {
			lang = InferLanguage(code)
		}
		blocks = append(blocks, Block{Tag: tag, Code: code, Language: lang})
	}
	return blocks
}

// First returns the first runnable fenced block. Leading data blocks such as
// ```json are passed over so they never replace the fragment being repaired.
func First(text string) (Block, bool) {
	blocks := All(text)
	if len(blocks) == 0 {
		return Block{}, false
	}
	return blocks[0], true
}

// InferLanguage guesses the language of an untagged block.
func InferLanguage(code string) domain.Language {
	for _, hint := range []string{"package ", "func ", "fmt.", ":=", "files.", "print("} {
		if strings.Contains(code, hint) {
			return domain.LanguageScript
		}
	}
	return domain.LanguageShell
}

// Links returns the distinct http(s) URLs in text, in order of appearance.
func Links(text string) []string {
	seen := map[string]bool{}
	var links []string
	for _, link := range linkPattern.FindAllString(text, -1) {
		link = strings.TrimRight(link, ".,;:!?")
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}
