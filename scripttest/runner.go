// Package scripttest discovers and runs SunScript golden scripts: .sun
// files whose leading comment block declares the expected printed stream.
//
// A script declares expectations with one comment line per output line:
//
//	// output: 1
//	// output: 2
//
// A script expected to fail declares the error substring instead:
//
//	// error: division by zero
package scripttest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sunscript-lang/sunscript"
)

// Expectation is the parsed header of one golden script.
type Expectation struct {
	Output string
	Error  string
}

// ParseExpectations reads the // output: and // error: comment lines of a
// script.
func ParseExpectations(source string) Expectation {
	var exp Expectation
	var out strings.Builder
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "// output:"):
			out.WriteString(strings.TrimPrefix(strings.TrimPrefix(trimmed, "// output:"), " "))
			out.WriteString("\n")
		case strings.HasPrefix(trimmed, "// error:"):
			exp.Error = strings.TrimSpace(strings.TrimPrefix(trimmed, "// error:"))
		}
	}
	exp.Output = out.String()
	return exp
}

// Discover returns every .sun file under dir.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".sun") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// RunDir executes every golden script under dir as a subtest.
func RunDir(t *testing.T, dir string) {
	t.Helper()
	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover scripts: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no .sun scripts under %s", dir)
	}
	for _, file := range files {
		file := file
		t.Run(filepath.Base(file), func(t *testing.T) {
			RunFile(t, file)
		})
	}
}

// RunFile executes one golden script and checks its expectations.
func RunFile(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	source := string(raw)
	exp := ParseExpectations(source)

	var out bytes.Buffer
	var errOut bytes.Buffer
	_, runErr := sunscript.Eval(context.Background(), source,
		sunscript.WithFilename(path),
		sunscript.WithDebugBuild(),
		sunscript.WithOutput(&out),
		sunscript.WithErrorOutput(&errOut),
	)

	if exp.Error != "" {
		if runErr == nil {
			t.Fatalf("expected error containing %q, script succeeded with output %q", exp.Error, out.String())
		}
		if !strings.Contains(runErr.Error(), exp.Error) {
			t.Fatalf("expected error containing %q, got %q", exp.Error, runErr.Error())
		}
		return
	}
	if runErr != nil {
		t.Fatalf("script failed: %v", runErr)
	}
	if out.String() != exp.Output {
		t.Fatalf("output mismatch\nwant:\n%s\ngot:\n%s", exp.Output, out.String())
	}
}
