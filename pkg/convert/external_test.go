package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// installFakeTool drops an executable shell script into a directory that
// is prepended to PATH for the test.
func installFakeTool(t *testing.T, name, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestToolBackendFilePlumbing(t *testing.T) {
	// Mimics rdfx's CLI: convert --format <id> --output <out> <in>.
	installFakeTool(t, "rdfx", `tr 'a-z' 'A-Z' < "$6" > "$5"`)

	reg := format.NewRegistry()
	b := NewRdfxBackend(ToolOptions{Dir: t.TempDir()})
	if !b.Available() {
		t.Fatal("fake rdfx should be visible on PATH")
	}

	out, err := b.Convert(context.Background(), []byte("payload"),
		mustFormat(t, reg, format.Turtle), mustFormat(t, reg, format.JSONLD))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != "PAYLOAD" {
		t.Errorf("got %q, want %q", out, "PAYLOAD")
	}
}

func TestToolBackendScratchCleanup(t *testing.T) {
	installFakeTool(t, "rdfx", `cp "$6" "$5"`)

	scratch := t.TempDir()
	reg := format.NewRegistry()
	b := NewRdfxBackend(ToolOptions{Dir: scratch})

	_, err := b.Convert(context.Background(), []byte("x"),
		mustFormat(t, reg, format.Turtle), mustFormat(t, reg, format.NTriples))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	left, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("scratch files not cleaned up: %v", left)
	}
}

func TestToolBackendToolFailure(t *testing.T) {
	installFakeTool(t, "rdfx", `echo "bad ontology" >&2; exit 1`)

	reg := format.NewRegistry()
	b := NewRdfxBackend(ToolOptions{Dir: t.TempDir()})

	_, err := b.Convert(context.Background(), []byte("x"),
		mustFormat(t, reg, format.Turtle), mustFormat(t, reg, format.JSONLD))
	if !errors.Is(err, errors.ErrCodeToolFailed) {
		t.Fatalf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeToolFailed)
	}
	if !strings.Contains(err.Error(), "bad ontology") {
		t.Errorf("stderr excerpt missing from %q", err)
	}
}

func TestToolBackendMissingTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	b := NewRdfxBackend(ToolOptions{})
	if b.Available() {
		t.Error("rdfx should not be available on an empty PATH")
	}
}

func TestToolBackendRejectsUndeclaredEdge(t *testing.T) {
	installFakeTool(t, "pylode", `cp "$8" "$7"`)

	reg := format.NewRegistry()
	b := NewPylodeBackend(ToolOptions{Dir: t.TempDir()})

	if b.Supports(format.HTML, format.Turtle) {
		t.Error("pylode must not read html")
	}
	_, err := b.Convert(context.Background(), []byte("x"),
		mustFormat(t, reg, format.Turtle), mustFormat(t, reg, format.NTriples))
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("undeclared edge should be an internal error, got %v", err)
	}
}

func TestRdfConvertArgs(t *testing.T) {
	reg := format.NewRegistry()
	b := NewRdfConvertBackend(ToolOptions{}).(*toolBackend)

	args := b.args("/tmp/in.rdf", "/tmp/out.ttl",
		mustFormat(t, reg, format.RDFXML), mustFormat(t, reg, format.Turtle))
	want := []string{"--input", "/tmp/in.rdf", "--output", "/tmp/out.ttl", "--read", "xml", "--write", "turtle"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args = %v, want %v", args, want)
		}
	}
}

func TestDefaultBackendsOrder(t *testing.T) {
	backends := DefaultBackends(ToolOptions{})
	if len(backends) != 4 {
		t.Fatalf("got %d backends, want 4", len(backends))
	}
	if backends[0].Name() != "native" || backends[0].Cost() != CostNative {
		t.Error("the in-process backend must be planned first")
	}
	for _, b := range backends[1:] {
		if b.Cost() != CostExternal {
			t.Errorf("%s cost = %d, want %d", b.Name(), b.Cost(), CostExternal)
		}
	}
}
