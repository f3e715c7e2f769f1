package link

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pontaoski/mini/errors"
)

type Target struct {
	OS   string `yaml:"OS"`
	Arch string `yaml:"Arch"`
}

func Host() Target {
	return Target{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// currentHost decides which targets count as native when picking a linker.
var currentHost = Host

func (t Target) String() string {
	return t.OS + "/" + t.Arch
}

func (t Target) IsZero() bool {
	return t.OS == "" && t.Arch == ""
}

// ParseTarget reads an "os/arch" pair such as "linux/amd64".
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Target{}, fmt.Errorf("invalid target %q, expected os/arch", s)
	}
	return Target{OS: parts[0], Arch: parts[1]}, nil
}

// Platform lowers textual IR to an object file and links that into an
// executable, for one target.
type Platform interface {
	Triple() string
	Lower(ctx context.Context, r Runner, llPath, objPath string) error
	Link(ctx context.Context, r Runner, objPath, exePath string) error
	// WithLinker returns a copy of the platform that only uses the given
	// linker binary.
	WithLinker(linker string) Platform
}

var (
	platformsMu sync.RWMutex
	platforms   = map[Target]Platform{}
)

// Register adds or replaces the platform for t.
func Register(t Target, p Platform) {
	platformsMu.Lock()
	defer platformsMu.Unlock()

	platforms[t] = p
}

func Lookup(t Target) (Platform, bool) {
	platformsMu.RLock()
	defer platformsMu.RUnlock()

	p, ok := platforms[t]
	return p, ok
}

// Targets lists every registered target.
func Targets() []Target {
	platformsMu.RLock()
	defer platformsMu.RUnlock()

	var ret []Target
	for t := range platforms {
		ret = append(ret, t)
	}
	return ret
}

// TripleFor returns the LLVM target triple for t.
func TripleFor(t Target) (string, error) {
	p, ok := Lookup(t)
	if !ok {
		return "", errors.LinkError{Target: t.String(), Reason: errors.ReasonUnsupportedTarget}
	}
	return p.Triple(), nil
}

// linkStyle says how a linker expects its arguments.
type linkStyle int

const (
	ccStyle linkStyle = iota
	msvcStyle
)

func styleOf(linker string) linkStyle {
	switch strings.ToLower(strings.TrimSuffix(filepath.Base(linker), ".exe")) {
	case "link", "lld-link":
		return msvcStyle
	}
	return ccStyle
}

// toolchain is a Platform driven by clang or llc for lowering and a C
// compiler driver (or link.exe) for linking.
type toolchain struct {
	triple   string
	pic      bool
	lowerers []string
	linkers  []string
	libs     []string
}

func (tc toolchain) Triple() string {
	return tc.triple
}

func (tc toolchain) WithLinker(linker string) Platform {
	tc.linkers = []string{linker}
	return tc
}

func (tc toolchain) Lower(ctx context.Context, r Runner, llPath, objPath string) error {
	tool, err := find(r, tc.triple, tc.lowerers)
	if err != nil {
		return err
	}

	var args []string
	if styleOfLowerer(tool) == "llc" {
		args = []string{"-filetype=obj", "-mtriple=" + tc.triple}
		if tc.pic {
			args = append(args, "-relocation-model=pic")
		}
		args = append(args, "-o", objPath, llPath)
	} else {
		args = []string{"-c", "-x", "ir", "--target=" + tc.triple}
		if tc.pic {
			args = append(args, "-fPIC")
		}
		args = append(args, "-o", objPath, llPath)
	}

	return run(ctx, r, tc.triple, tool, args)
}

// native reports whether tc builds for the machine running the compiler.
func (tc toolchain) native() bool {
	p, ok := Lookup(currentHost())
	return ok && p.Triple() == tc.triple
}

func isClang(tool string) bool {
	return strings.HasPrefix(strings.TrimSuffix(filepath.Base(tool), ".exe"), "clang")
}

// crossLinkers keeps the candidates that take a target triple. A plain cc
// or gcc always links for the host.
func crossLinkers(candidates []string) (ret []string) {
	for _, name := range candidates {
		if isClang(name) || styleOf(name) == msvcStyle {
			ret = append(ret, name)
		}
	}
	return
}

func styleOfLowerer(tool string) string {
	if strings.HasPrefix(strings.TrimSuffix(filepath.Base(tool), ".exe"), "llc") {
		return "llc"
	}
	return "clang"
}

func (tc toolchain) Link(ctx context.Context, r Runner, objPath, exePath string) error {
	linkers := tc.linkers
	if !tc.native() {
		linkers = crossLinkers(tc.linkers)
		if len(linkers) == 0 {
			return errors.LinkError{
				Target: tc.triple,
				Tool:   strings.Join(tc.linkers, ", "),
				Reason: errors.ReasonNoCrossLinker,
			}
		}
	}

	tool, err := find(r, tc.triple, linkers)
	if err != nil {
		return err
	}

	var args []string
	switch styleOf(tool) {
	case msvcStyle:
		args = append(args, "/NOLOGO", objPath, "/OUT:"+exePath)
		for _, lib := range tc.libs {
			args = append(args, lib+".lib")
		}
	default:
		if isClang(tool) {
			args = append(args, "--target="+tc.triple)
		}
		args = append(args, objPath, "-o", exePath)
		for _, lib := range tc.libs {
			args = append(args, "-l"+lib)
		}
	}

	return run(ctx, r, tc.triple, tool, args)
}

func unix(triple string) toolchain {
	return toolchain{
		triple:   triple,
		pic:      true,
		lowerers: []string{"clang", "llc"},
		linkers:  []string{"cc", "gcc", "clang"},
		libs:     []string{"c"},
	}
}

func darwin(triple string) toolchain {
	return toolchain{
		triple:   triple,
		pic:      true,
		lowerers: []string{"clang", "llc"},
		linkers:  []string{"clang", "cc"},
		libs:     []string{"System"},
	}
}

func windows(triple string) toolchain {
	return toolchain{
		triple:   triple,
		lowerers: []string{"clang", "llc"},
		linkers:  []string{"clang", "link.exe", "lld-link"},
		libs:     []string{"msvcrt", "legacy_stdio_definitions"},
	}
}

func init() {
	Register(Target{"linux", "amd64"}, unix("x86_64-unknown-linux-gnu"))
	Register(Target{"linux", "arm64"}, unix("aarch64-unknown-linux-gnu"))
	Register(Target{"freebsd", "amd64"}, unix("x86_64-unknown-freebsd"))
	Register(Target{"darwin", "amd64"}, darwin("x86_64-apple-macosx11.0.0"))
	Register(Target{"darwin", "arm64"}, darwin("arm64-apple-macosx11.0.0"))
	Register(Target{"windows", "amd64"}, windows("x86_64-pc-windows-msvc"))
}
