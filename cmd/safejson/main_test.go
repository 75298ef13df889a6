package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xarantolus/safejson/internal/config"
)

const testInput = `var x = {
	// not JSON
	a: 1,
	b: undefined,
};`

func runTest(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	t.Setenv("SAFEJSON_DEBUG", "")

	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		want     string
	}{
		{
			name:     "report",
			args:     []string{"-"},
			wantCode: exitOK,
			want:     `{"value":{"a":1},"changes":[{"path":["b"],"pointer":"/b","reason":"invalidType","oldValue":null,"newValue":null}]}` + "\n",
		},
		{
			name:     "value only",
			args:     []string{"--changes=false", "-"},
			wantCode: exitOK,
			want:     `{"a":1}` + "\n",
		},
		{
			name:     "indented",
			args:     []string{"--changes=false", "--indent", "  ", "-"},
			wantCode: exitOK,
			want:     "{\n  \"a\": 1\n}\n",
		},
		{
			name:     "fail on change",
			args:     []string{"--changes=false", "--fail-on-change", "-"},
			wantCode: exitChanged,
			want:     `{"a":1}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runTest(t, testInput, tt.args...)
			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d; stderr: %s", code, tt.wantCode, stderr)
			}
			if stdout != tt.want {
				t.Errorf("run() wrote %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestRunFailOnChangeWithoutChanges(t *testing.T) {
	code, stdout, _ := runTest(t, `{"a": [true]}`, "--changes=false", "--fail-on-change", "-")
	if code != exitOK || stdout != `{"a":[true]}`+"\n" {
		t.Errorf("run() = %d, %q", code, stdout)
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.js")
	if err := os.WriteFile(path, []byte(testInput), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runTest(t, "", "--changes=false", path)
	if code != exitOK || stdout != `{"a":1}`+"\n" {
		t.Errorf("run() = %d, %q", code, stdout)
	}
}

func TestRunURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.js" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, testInput)
	}))
	defer srv.Close()

	code, stdout, stderr := runTest(t, "", "--changes=false", srv.URL+"/data.js")
	if code != exitOK || stdout != `{"a":1}`+"\n" {
		t.Errorf("run() = %d, %q; stderr: %s", code, stdout, stderr)
	}

	code, _, stderr = runTest(t, "", srv.URL+"/missing.js")
	if code != exitError || !strings.Contains(stderr, "404") {
		t.Errorf("run() = %d for a missing page; stderr: %s", code, stderr)
	}
}

func TestRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safejson.yaml")
	if err := os.WriteFile(path, []byte("changes: false\nfail_on_change: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runTest(t, testInput, "--config", path, "-")
	if code != exitChanged || stdout != `{"a":1}`+"\n" {
		t.Errorf("run() = %d, %q", code, stdout)
	}

	// Flags override the file
	code, _, _ = runTest(t, testInput, "--config", path, "--fail-on-change=false", "-")
	if code != exitOK {
		t.Errorf("run() = %d, want the flag to override the config file", code)
	}
}

func TestRunAll(t *testing.T) {
	const page = `<html><script>
	var a = {x: 1};
	var b = [NaN];
	var c = {y: 'z'};
	</script></html>`

	code, stdout, stderr := runTest(t, page, "--all", "--changes=false", "-")
	if code != exitOK {
		t.Fatalf("run() = %d; stderr: %s", code, stderr)
	}
	if want := "{\"x\":1}\n[]\n{\"y\":\"z\"}\n"; stdout != want {
		t.Errorf("run() wrote %q, want %q", stdout, want)
	}

	code, stdout, _ = runTest(t, page, "-a", "--limit", "2", "--changes=false", "--fail-on-change", "-")
	if code != exitChanged {
		t.Errorf("run() = %d, want %d", code, exitChanged)
	}
	if want := "{\"x\":1}\n[]\n"; stdout != want {
		t.Errorf("run() wrote %q, want %q", stdout, want)
	}
}

func TestRunDebugLog(t *testing.T) {
	code, _, stderr := runTest(t, testInput, "--log-level", "debug", "-")
	if code != exitOK {
		t.Fatalf("run() = %d", code)
	}
	if !strings.Contains(stderr, "path=/b") || !strings.Contains(stderr, "reason=invalidType") {
		t.Errorf("debug log does not mention the change: %s", stderr)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"no argument", "", nil},
		{"too many arguments", "", []string{"a", "b"}},
		{"unknown flag", "", []string{"--nope", "-"}},
		{"invalid format", "{}", []string{"--format", "xml", "-"}},
		{"negative limit", "{}", []string{"--all", "--limit", "-1", "-"}},
		{"missing file", "", []string{filepath.Join(t.TempDir(), "missing.js")}},
		{"invalid input", "{a: }", []string{"-"}},
		{"missing config", "{}", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runTest(t, tt.stdin, tt.args...)
			if code != exitError {
				t.Errorf("run() = %d, want %d", code, exitError)
			}
			if stdout != "" {
				t.Errorf("run() wrote %q on failure", stdout)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	code, _, stderr := runTest(t, "", "--help")
	if code != exitOK || !strings.Contains(stderr, "Usage: safejson") {
		t.Errorf("run() = %d; stderr: %s", code, stderr)
	}
}
