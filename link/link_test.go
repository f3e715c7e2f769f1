package link

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/nalgeon/be"
	"github.com/pontaoski/mini/errors"
)

type call struct {
	name string
	args []string
}

// fakeRunner pretends that the tools in have exist, and writes a dummy file
// to wherever a command was asked to put its output.
type fakeRunner struct {
	mu    sync.Mutex
	have  map[string]bool
	fail  map[string]bool
	block bool
	calls []call
	looks []string
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.looks = append(f.looks, file)
	if f.have[file] {
		return "/usr/bin/" + file, nil
	}
	return "", exec.ErrNotFound
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name, args})
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fail[filepath.Base(name)] {
		return []byte("undefined reference to `printf'"), stderrors.New("exit status 1")
	}

	for i, arg := range args {
		out := ""
		if arg == "-o" && i+1 < len(args) {
			out = args[i+1]
		} else if strings.HasPrefix(arg, "/OUT:") {
			out = strings.TrimPrefix(arg, "/OUT:")
		}
		if out != "" {
			if err := os.WriteFile(out, []byte("binary from "+name), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// withHost makes target the native platform for the rest of the test.
func withHost(t *testing.T, target Target) {
	t.Helper()
	old := currentHost
	currentHost = func() Target { return target }
	t.Cleanup(func() { currentHost = old })
}

func testModule() *ir.Module {
	m := ir.NewModule()
	fn := m.NewFunc("main", types.I32)
	fn.NewBlock("entry").NewRet(constant.NewInt(types.I32, 0))
	return m
}

func linkError(t *testing.T, err error) errors.LinkError {
	t.Helper()
	var lerr errors.LinkError
	if !stderrors.As(err, &lerr) {
		t.Fatalf("expected a LinkError, got %T: %v", err, err)
	}
	return lerr
}

func dirEntries(t *testing.T, dir string) (names []string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	be.Err(t, err, nil)
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return
}

func TestUnsupportedTargetFailsFast(t *testing.T) {
	r := &fakeRunner{have: map[string]bool{"clang": true, "cc": true}}
	out := filepath.Join(t.TempDir(), "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "plan9", Arch: "amd64"},
		Runner: r,
	})
	lerr := linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonUnsupportedTarget)
	be.Equal(t, lerr.Target, "plan9/amd64")
	be.Equal(t, errors.StageOf(err), errors.StageLink)
	be.Equal(t, len(r.calls), 0)
	be.Equal(t, len(r.looks), 0)

	_, statErr := os.Stat(out)
	be.True(t, os.IsNotExist(statErr))
}

func TestLinuxWithClangAndCC(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	r := &fakeRunner{have: map[string]bool{"clang": true, "cc": true}}
	dir := t.TempDir()
	out := filepath.Join(dir, "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "amd64"},
		Runner: r,
	})
	be.Err(t, err, nil)

	be.Equal(t, len(r.calls), 2)
	lower, link := r.calls[0], r.calls[1]

	be.Equal(t, lower.name, "/usr/bin/clang")
	be.Equal(t, lower.args[:5], []string{"-c", "-x", "ir", "--target=x86_64-unknown-linux-gnu", "-fPIC"})
	be.True(t, strings.HasSuffix(lower.args[len(lower.args)-1], "module.ll"))

	be.Equal(t, link.name, "/usr/bin/cc")
	be.True(t, strings.HasSuffix(link.args[0], "module.o"))
	be.Equal(t, link.args[len(link.args)-1], "-lc")

	data, err := os.ReadFile(out)
	be.Err(t, err, nil)
	be.Equal(t, string(data), "binary from /usr/bin/cc")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(out)
		be.Err(t, err, nil)
		be.Equal(t, info.Mode().Perm(), os.FileMode(0o755))
	}
	be.Equal(t, dirEntries(t, dir), []string{"prog"})
}

func TestFallsBackToLLC(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "arm64"})
	r := &fakeRunner{have: map[string]bool{"llc": true, "gcc": true}}
	out := filepath.Join(t.TempDir(), "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "arm64"},
		Runner: r,
	})
	be.Err(t, err, nil)
	be.Equal(t, r.calls[0].name, "/usr/bin/llc")
	be.Equal(t, r.calls[0].args[:3], []string{"-filetype=obj", "-mtriple=aarch64-unknown-linux-gnu", "-relocation-model=pic"})
	be.Equal(t, r.calls[1].name, "/usr/bin/gcc")
}

func TestDarwinAndWindowsArguments(t *testing.T) {
	r := &fakeRunner{have: map[string]bool{"clang": true}}
	out := filepath.Join(t.TempDir(), "prog")
	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "darwin", Arch: "arm64"},
		Runner: r,
	})
	be.Err(t, err, nil)
	be.Equal(t, r.calls[1].name, "/usr/bin/clang")
	be.Equal(t, r.calls[1].args[0], "--target=arm64-apple-macosx11.0.0")
	be.Equal(t, r.calls[1].args[len(r.calls[1].args)-1], "-lSystem")

	r = &fakeRunner{have: map[string]bool{"clang": true, "link.exe": true}}
	err = Link(context.Background(), testModule(), out+".exe", Options{
		Target: Target{OS: "windows", Arch: "amd64"},
		Linker: "link.exe",
		Runner: r,
	})
	be.Err(t, err, nil)
	link := r.calls[1]
	be.Equal(t, link.name, "/usr/bin/link.exe")
	be.Equal(t, link.args[0], "/NOLOGO")
	be.True(t, strings.HasSuffix(link.args[1], "module.obj"))
	be.Equal(t, link.args[3:], []string{"msvcrt.lib", "legacy_stdio_definitions.lib"})
}

func TestCrossLinkPassesTriple(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	r := &fakeRunner{have: map[string]bool{"clang": true, "cc": true}}
	out := filepath.Join(t.TempDir(), "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "arm64"},
		Runner: r,
	})
	be.Err(t, err, nil)

	link := r.calls[1]
	be.Equal(t, link.name, "/usr/bin/clang")
	be.Equal(t, link.args[0], "--target=aarch64-unknown-linux-gnu")
	be.True(t, strings.HasSuffix(link.args[1], "module.o"))
}

func TestCrossLinkRejectsHostOnlyLinkers(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	dir := t.TempDir()

	r := &fakeRunner{have: map[string]bool{"llc": true, "cc": true, "gcc": true}}
	err := Link(context.Background(), testModule(), filepath.Join(dir, "prog"), Options{
		Target: Target{OS: "linux", Arch: "arm64"},
		Linker: "gcc",
		Runner: r,
	})
	lerr := linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonNoCrossLinker)
	be.Equal(t, lerr.Tool, "gcc")
	// the object was lowered, but nothing was linked
	be.Equal(t, len(r.calls), 1)
	be.Equal(t, len(dirEntries(t, dir)), 0)

	r = &fakeRunner{have: map[string]bool{"llc": true, "cc": true}}
	err = Link(context.Background(), testModule(), filepath.Join(dir, "prog"), Options{
		Target: Target{OS: "freebsd", Arch: "amd64"},
		Runner: r,
	})
	lerr = linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonToolNotFound)
	be.Equal(t, lerr.Tool, "clang")
}

func TestMissingTool(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	r := &fakeRunner{have: map[string]bool{"llc": true}}
	out := filepath.Join(t.TempDir(), "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "amd64"},
		Runner: r,
	})
	lerr := linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonToolNotFound)
	be.Equal(t, lerr.Tool, "cc, gcc, clang")
	// only the lowering step ran
	be.Equal(t, len(r.calls), 1)
}

func TestLinkerOverride(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	r := &fakeRunner{have: map[string]bool{"clang": true, "cc": true}}
	out := filepath.Join(t.TempDir(), "prog")

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "amd64"},
		Linker: "musl-gcc",
		Runner: r,
	})
	lerr := linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonToolNotFound)
	be.Equal(t, lerr.Tool, "musl-gcc")
}

func TestFailedLinkKeepsOldOutput(t *testing.T) {
	withHost(t, Target{OS: "linux", Arch: "amd64"})
	r := &fakeRunner{
		have: map[string]bool{"clang": true, "cc": true},
		fail: map[string]bool{"cc": true},
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "prog")
	be.Err(t, os.WriteFile(out, []byte("old"), 0o644), nil)

	err := Link(context.Background(), testModule(), out, Options{
		Target: Target{OS: "linux", Arch: "amd64"},
		Runner: r,
	})
	lerr := linkError(t, err)
	be.Equal(t, lerr.Reason, errors.ReasonToolFailed)
	be.True(t, strings.Contains(lerr.Error(), "undefined reference"))

	data, err := os.ReadFile(out)
	be.Err(t, err, nil)
	be.Equal(t, string(data), "old")
	be.Equal(t, dirEntries(t, dir), []string{"prog"})
}

func TestFailedLinkCreatesNothing(t *testing.T) {
	r := &fakeRunner{
		have: map[string]bool{"clang": true, "cc": true},
		fail: map[string]bool{"clang": true},
	}
	dir := t.TempDir()

	err := Link(context.Background(), testModule(), filepath.Join(dir, "prog"), Options{
		Target: Target{OS: "linux", Arch: "amd64"},
		Runner: r,
	})
	be.Equal(t, linkError(t, err).Reason, errors.ReasonToolFailed)
	be.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTimeout(t *testing.T) {
	r := &fakeRunner{
		have:  map[string]bool{"clang": true, "cc": true},
		block: true,
	}
	dir := t.TempDir()

	err := Link(context.Background(), testModule(), filepath.Join(dir, "prog"), Options{
		Target:  Target{OS: "linux", Arch: "amd64"},
		Timeout: 20 * time.Millisecond,
		Runner:  r,
	})
	be.Equal(t, linkError(t, err).Reason, errors.ReasonTimeout)
	be.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTargets(t *testing.T) {
	for _, target := range []string{"linux/amd64", "linux/arm64", "darwin/amd64", "darwin/arm64", "windows/amd64", "freebsd/amd64"} {
		parsed, err := ParseTarget(target)
		be.Err(t, err, nil)
		triple, err := TripleFor(parsed)
		be.Err(t, err, nil)
		be.True(t, triple != "")
	}

	for _, bad := range []string{"", "linux", "linux/", "/amd64", "a/b/c"} {
		_, err := ParseTarget(bad)
		be.Err(t, err)
	}

	_, err := TripleFor(Target{OS: "linux", Arch: "mips"})
	be.Equal(t, errors.StageOf(err), errors.StageLink)
}

func TestRegister(t *testing.T) {
	target := Target{OS: "test", Arch: fmt.Sprint(time.Now().UnixNano())}
	_, ok := Lookup(target)
	be.True(t, !ok)

	Register(target, unix("x86_64-unknown-test"))
	triple, err := TripleFor(target)
	be.Err(t, err, nil)
	be.Equal(t, triple, "x86_64-unknown-test")
}
