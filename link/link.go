package link

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/llir/llvm/ir"
	"github.com/pontaoski/mini/errors"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/mini", "link")

type Options struct {
	// Target defaults to the host.
	Target Target
	// Linker replaces the platform's linker search when set.
	Linker string
	// Timeout bounds every external tool invocation together. Zero means
	// no limit.
	Timeout time.Duration
	// Runner defaults to ExecRunner.
	Runner Runner
}

// Link lowers mod to a native object and links it into an executable at
// outPath. outPath is either fully written or left untouched.
func Link(ctx context.Context, mod *ir.Module, outPath string, opts Options) error {
	target := opts.Target
	if target.IsZero() {
		target = Host()
	}

	platform, ok := Lookup(target)
	if !ok {
		return errors.LinkError{Target: target.String(), Reason: errors.ReasonUnsupportedTarget}
	}
	if opts.Linker != "" {
		platform = platform.WithLinker(opts.Linker)
	}

	r := opts.Runner
	if r == nil {
		r = ExecRunner{}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	work, err := os.MkdirTemp("", "mini-link-*")
	if err != nil {
		return errors.LinkError{Target: target.String(), Reason: errors.ReasonOutput, Err: err}
	}
	defer os.RemoveAll(work)

	llPath := filepath.Join(work, "module.ll")
	if err := writeModule(mod, llPath); err != nil {
		return errors.LinkError{Target: target.String(), Reason: errors.ReasonOutput, Err: err}
	}

	objPath := filepath.Join(work, "module.o")
	if target.OS == "windows" {
		objPath = filepath.Join(work, "module.obj")
	}

	plog.Debugf("lowering for %s (%s)", target, platform.Triple())
	if err := platform.Lower(ctx, r, llPath, objPath); err != nil {
		return err
	}

	tmp, err := tempSibling(outPath)
	if err != nil {
		return errors.LinkError{Target: target.String(), Reason: errors.ReasonOutput, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp)
		}
	}()

	plog.Debugf("linking %s", outPath)
	if err := platform.Link(ctx, r, objPath, tmp); err != nil {
		return err
	}

	if err := commit(tmp, outPath); err != nil {
		return errors.LinkError{Target: target.String(), Reason: errors.ReasonOutput, Err: err}
	}
	committed = true

	plog.Infof("linked %s for %s", outPath, target)
	return nil
}

func writeModule(mod *ir.Module, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, strings.NewReader(mod.String())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// tempSibling reserves a file next to outPath, so the final rename stays on
// one filesystem.
func tempSibling(outPath string) (string, error) {
	dir, base := filepath.Split(outPath)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func commit(tmp, outPath string) error {
	info, err := os.Stat(tmp)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return stderrors.New("linker produced an empty file")
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmp, 0o755); err != nil {
			return err
		}
	}
	return os.Rename(tmp, outPath)
}

func find(r Runner, triple string, candidates []string) (string, error) {
	for _, name := range candidates {
		if path, err := r.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.LinkError{
		Target: triple,
		Tool:   strings.Join(candidates, ", "),
		Reason: errors.ReasonToolNotFound,
	}
}

func run(ctx context.Context, r Runner, triple, tool string, args []string) error {
	out, err := r.Run(ctx, tool, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return errors.LinkError{Target: triple, Tool: tool, Reason: errors.ReasonTimeout, Output: string(out), Err: ctx.Err()}
	}
	if err != nil {
		return errors.LinkError{Target: triple, Tool: tool, Reason: errors.ReasonToolFailed, Output: string(out), Err: err}
	}
	return nil
}
