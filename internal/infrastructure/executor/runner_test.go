package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/vrelay/internal/domain"
)

func newTestRunner(timeout time.Duration) *Runner {
	return NewRunner(Options{Timeout: timeout, Shell: "/bin/sh"})
}

func script(text string) domain.CodeFragment {
	return domain.NewFragment(text, domain.LanguageScript)
}

func shell(text string) domain.CodeFragment {
	return domain.NewFragment(text, domain.LanguageShell)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		fragment domain.CodeFragment
		want     Class
	}{
		{"plain script", script("print(1)"), ClassScript},
		{"plain shell", shell("ls -la"), ClassShell},
		{"helper call", script(`fmt.Println(files.List("."))`), ClassFilesystem},
		{"os open", script(`f, _ := os.Open("x")`), ClassFilesystem},
		{"shell tag with marker", shell(`files.Read("x")`), ClassFilesystem},
		{"read file", script(`os.ReadFile("x")`), ClassFilesystem},
		{"shell naming a files file", shell("cat /tmp/files.txt"), ClassShell},
		{"shell redirect to files json", shell("ls > my_files.json"), ClassShell},
		{"walk helper", script(`fmt.Println(files.Walk("."))`), ClassFilesystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.fragment))
		})
	}
}

func TestParseProgramSplitsImports(t *testing.T) {
	prog := parseProgram("// header\nimport \"fmt\"\nimport (\n\ts \"strings\"\n)\n\nfmt.Println(s.ToUpper(\"a\"))")

	require.Len(t, prog.imports, 2)
	assert.Equal(t, importSpec{path: "fmt"}, prog.imports[0])
	assert.Equal(t, importSpec{alias: "s", path: "strings"}, prog.imports[1])
	assert.Equal(t, "fmt.Println(s.ToUpper(\"a\"))", prog.body)
	assert.False(t, prog.full)
}

func TestParseProgramDetectsFullPrograms(t *testing.T) {
	prog := parseProgram("package main\n\nimport \"os\"\n\nfunc main() {}")
	assert.True(t, prog.full)
	require.Len(t, prog.imports, 1)
	assert.Equal(t, "os", prog.imports[0].path)
}

func TestReferencesPackage(t *testing.T) {
	assert.True(t, referencesPackage(`fmt.Println(1)`, "fmt"))
	assert.True(t, referencesPackage(`x := strings.ToUpper("a")`, "strings"))
	assert.False(t, referencesPackage(`filepath.Join("a")`, "path"))
	assert.False(t, referencesPackage(`myfmt.Println(1)`, "fmt"))
}

func TestCapabilityRegistry(t *testing.T) {
	general, ok := CapabilityFor(ClassScript)
	require.True(t, ok)
	assert.True(t, general.Allows("strings"))
	assert.True(t, general.Allows("encoding/json"))
	assert.False(t, general.Allows("os"))
	assert.False(t, general.Allows("os/exec"))
	assert.False(t, general.Allows("files"))

	fsCap, ok := CapabilityFor(ClassFilesystem)
	require.True(t, ok)
	assert.Equal(t, []string{"files", "fmt", "os"}, fsCap.Packages())
	assert.Len(t, fsCap.exports["os/os"], 1)

	_, ok = CapabilityFor(ClassShell)
	assert.False(t, ok)
}

func TestRunScriptPrints(t *testing.T) {
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script("print(1)"))

	require.True(t, outcome.Success, outcome.Output)
	assert.Equal(t, "1", outcome.Output)
	assert.Equal(t, domain.FailureNone, outcome.Failure)
}

func TestRunScriptDivideByZeroFails(t *testing.T) {
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script("print(1/0)"))

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.FailureExecution, outcome.Failure)
	assert.Contains(t, outcome.Output, "Script Error:")
	assert.Contains(t, outcome.Output, "by zero")
}

func TestRunScriptResolvesStdlibImports(t *testing.T) {
	outcome := newTestRunner(5 * time.Second).Run(context.Background(),
		script(`fmt.Println(strings.ToUpper("relay"))`))

	require.True(t, outcome.Success, outcome.Output)
	assert.Equal(t, "RELAY", outcome.Output)
}

func TestRunScriptRejectsHostPackages(t *testing.T) {
	outcome := newTestRunner(5 * time.Second).Run(context.Background(),
		script("import \"os/exec\"\nexec.Command(\"ls\").Run()"))

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Output, `import "os/exec" is not permitted`)
}

func TestRunScriptDeclarationShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"statements", "x := 2\nfmt.Println(x*3)", "6"},
		{"leading var", "var total int\nfor i := 0; i < 3; i++ { total += i }\nfmt.Println(total)", "3"},
		{"leading func", "func add(a, b int) int { return a + b }\nfmt.Println(add(1, 2))", "3"},
		{"leading const", "const n = 4\nfmt.Println(n * n)", "16"},
		{"type and method", "type point struct{ x, y int }\nfunc (p point) sum() int { return p.x + p.y }\nfmt.Println(point{1, 2}.sum())", "3"},
		{"trailing func", "fmt.Println(double(4))\nfunc double(n int) int { return n * 2 }", "8"},
		{"import then func", "import \"strings\"\nfunc shout(s string) string { return strings.ToUpper(s) }\nfmt.Println(shout(\"hi\"))", "HI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := newTestRunner(5*time.Second).Run(context.Background(), script(tt.src))
			require.True(t, outcome.Success, outcome.Output)
			assert.Equal(t, tt.want, outcome.Output)
		})
	}
}

func TestRunScriptRejectsGoStatements(t *testing.T) {
	src := "go func() { panic(\"from goroutine\") }()\ntime.Sleep(200*time.Millisecond)\nfmt.Println(\"after\")"
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script(src))

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.FailureExecution, outcome.Failure)
	assert.Contains(t, outcome.Output, "Script Error: go statements are not permitted")
}

func TestScriptCapabilityHidesAfterFunc(t *testing.T) {
	general, ok := CapabilityFor(ClassScript)
	require.True(t, ok)
	assert.NotContains(t, general.exports["time/time"], "AfterFunc")
	assert.Contains(t, general.exports["time/time"], "Sleep")
}

func TestRunScriptEmptyOutputNote(t *testing.T) {
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script("x := 1\n_ = x"))

	require.True(t, outcome.Success, outcome.Output)
	assert.Equal(t, "(script executed)", outcome.Output)
}

func TestRunScriptTimeout(t *testing.T) {
	outcome := newTestRunner(100*time.Millisecond).Run(context.Background(),
		script("time.Sleep(2 * time.Second)"))

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.FailureTimeout, outcome.Failure)
	assert.Contains(t, outcome.Output, "timed out")
}

func TestRunFilesystemHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello relay"), 0o644))

	outcome := newTestRunner(5*time.Second).Run(context.Background(),
		script(fmt.Sprintf("fmt.Print(files.Read(%q))", path)))

	require.True(t, outcome.Success, outcome.Output)
	assert.Equal(t, "hello relay", outcome.Output)
}

func TestRunFilesystemWriteThenList(t *testing.T) {
	dir := t.TempDir()
	src := fmt.Sprintf("files.Write(%q, \"data\")\nfmt.Println(files.List(%q))",
		filepath.Join(dir, "out.txt"), dir)

	outcome := newTestRunner(5*time.Second).Run(context.Background(), script(src))

	require.True(t, outcome.Success, outcome.Output)
	assert.Equal(t, "out.txt", outcome.Output)
}

func TestRunFilesystemRestrictsPackages(t *testing.T) {
	src := "import \"strings\"\nfmt.Println(strings.ToUpper(files.List(\".\")))"
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script(src))

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Output, "Filesystem Error:")
	assert.Contains(t, outcome.Output, "not permitted")
}

func TestRunFilesystemHelperErrorFailsAttempt(t *testing.T) {
	src := fmt.Sprintf("fmt.Println(files.Read(%q))", filepath.Join(t.TempDir(), "missing"))
	outcome := newTestRunner(5 * time.Second).Run(context.Background(), script(src))

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Output, "failed to read file")
}

func TestRunShell(t *testing.T) {
	tests := []struct {
		name        string
		command     string
		wantSuccess bool
		wantOutput  string
		wantKind    domain.FailureKind
	}{
		{"echo", "echo hello", true, "hello", domain.FailureNone},
		{"silent", "true", true, "(shell command executed)", domain.FailureNone},
		{"stderr only", "echo warn 1>&2", true, "warn", domain.FailureNone},
		{"non-zero exit", "echo boom 1>&2; exit 3", false, "Shell Error: exit status 3\nboom", domain.FailureExecution},
		{"error marker", "echo 'Error: nope'", false, "Error: nope", domain.FailureExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := newTestRunner(5*time.Second).Run(context.Background(), shell(tt.command))
			assert.Equal(t, tt.wantSuccess, outcome.Success)
			assert.Equal(t, tt.wantOutput, outcome.Output)
			assert.Equal(t, tt.wantKind, outcome.Failure)
		})
	}
}

func TestRunShellTimeout(t *testing.T) {
	outcome := newTestRunner(100*time.Millisecond).Run(context.Background(), shell("sleep 5"))

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.FailureTimeout, outcome.Failure)
	assert.Equal(t, "Shell Error: execution timed out after 100ms", outcome.Output)
}

func TestRunRecordsDuration(t *testing.T) {
	outcome := newTestRunner(5*time.Second).Run(context.Background(), shell("sleep 0.05"))

	require.True(t, outcome.Success)
	assert.GreaterOrEqual(t, outcome.Duration, 50*time.Millisecond)
}
