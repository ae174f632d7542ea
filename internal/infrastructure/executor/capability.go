package executor

import (
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/doeshing/vrelay/internal/domain"
)

// Class is the execution class a fragment is routed to.
type Class string

const (
	ClassScript     Class = "Script"
	ClassShell      Class = "Shell"
	ClassFilesystem Class = "Filesystem"
)

// filesystemMarkers route a fragment to the filesystem class.
var filesystemMarkers = []string{
	"os.Open(",
	"os.ReadDir(",
	"filepath.Walk",
	"files.Read(",
	"files.Write(",
	"files.List(",
	"files.Walk(",
	".Read(",
	".Write(",
	"ReadFile(",
	"WriteFile(",
}

// scriptPackages are the pure stdlib packages reachable from general scripts.
// Anything that touches the host (os, os/exec, net, syscall, unsafe) is absent.
var scriptPackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/hex",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"math/bits",
	"math/rand",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"text/tabwriter",
	"time",
	"unicode",
	"unicode/utf8",
}

// detachedSymbols run callbacks on goroutines of their own, where a panic
// cannot be recovered by the interpreter.
var detachedSymbols = map[string][]string{
	"time/time": {"AfterFunc"},
}

// Classify routes a fragment. Filesystem markers win over the language tag.
func Classify(fragment domain.CodeFragment) Class {
	for _, marker := range filesystemMarkers {
		if strings.Contains(fragment.Text, marker) {
			return ClassFilesystem
		}
	}
	if fragment.Language == domain.LanguageShell {
		return ClassShell
	}
	return ClassScript
}

// Capability is the set of symbol tables an interpreted class may import.
type Capability struct {
	Class   Class
	exports interp.Exports
	paths   map[string]string
}

// Allows reports whether importPath is reachable from this class.
func (c Capability) Allows(importPath string) bool {
	_, ok := c.paths[importPath]
	return ok
}

// Packages lists the reachable import paths.
func (c Capability) Packages() []string {
	out := make([]string, 0, len(c.paths))
	for p := range c.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// name returns the package name used to reference importPath.
func (c Capability) name(importPath string) string {
	return c.paths[importPath]
}

var (
	registryOnce sync.Once
	registry     map[Class]Capability
)

// CapabilityFor returns the capability of an interpreted class.
func CapabilityFor(class Class) (Capability, bool) {
	registryOnce.Do(buildRegistry)
	c, ok := registry[class]
	return c, ok
}

func buildRegistry() {
	registry = map[Class]Capability{
		ClassScript:     stdlibCapability(ClassScript, scriptPackages),
		ClassFilesystem: filesystemCapability(),
	}
}

func stdlibCapability(class Class, allowed []string) Capability {
	want := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		want[p] = true
	}
	capability := Capability{Class: class, exports: interp.Exports{}, paths: map[string]string{}}
	for key, symbols := range stdlib.Symbols {
		importPath, name := splitExportKey(key)
		if !want[importPath] {
			continue
		}
		capability.exports[key] = withoutSymbols(symbols, detachedSymbols[key])
		capability.paths[importPath] = name
	}
	return capability
}

func withoutSymbols(symbols map[string]reflect.Value, drop []string) map[string]reflect.Value {
	if len(drop) == 0 {
		return symbols
	}
	out := make(map[string]reflect.Value, len(symbols))
	for name, value := range symbols {
		out[name] = value
	}
	for _, name := range drop {
		delete(out, name)
	}
	return out
}

// filesystemCapability exposes the file helpers, a restricted os with only
// Open, and fmt for printing results.
func filesystemCapability() Capability {
	capability := stdlibCapability(ClassFilesystem, []string{"fmt"})
	capability.exports["files/files"] = map[string]reflect.Value{
		"Read":  reflect.ValueOf(ReadFile),
		"Write": reflect.ValueOf(WriteFile),
		"List":  reflect.ValueOf(ListDir),
		"Walk":  reflect.ValueOf(WalkDir),
	}
	capability.paths["files"] = "files"
	capability.exports["os/os"] = map[string]reflect.Value{
		"Open": reflect.ValueOf(os.Open),
	}
	capability.paths["os"] = "os"
	return capability
}

// splitExportKey turns "encoding/json/json" into ("encoding/json", "json").
func splitExportKey(key string) (string, string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key, key
	}
	return key[:idx], key[idx+1:]
}
