package link

import (
	"context"
	"os/exec"
	"strings"
)

// Runner finds and runs external tools. Tests swap in a fake.
type Runner interface {
	LookPath(file string) (string, error)
	// Run runs name to completion and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	plog.Debugf("running %s %s", name, strings.Join(args, " "))
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
