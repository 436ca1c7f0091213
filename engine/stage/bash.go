package stage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/afero"

	"github.com/flowforge/flowforge/engine/core"
)

// shellCandidates lists interpreters to try in order, matching the spec's
// "bash on Unix-like, sh as fallback" contract.
var shellCandidates = []string{"bash", "sh"}

// bashFS backs writeScript. It is a real OS filesystem by default — a
// shell interpreter needs an actual path to exec — but tests may swap it
// for an afero.MemMapFs to exercise writeScript's error paths without
// touching disk.
var bashFS afero.Fs = afero.NewOsFs()

// runBash writes spec.Run to a temporary executable script and runs it
// through the first available shell, merging spec.Env into the child
// environment and capturing stdout/stderr as strings.
func runBash(ctx context.Context, spec Spec) (core.Output, error) {
	shell, err := resolveShell()
	if err != nil {
		return nil, err
	}
	scriptPath, cleanup, err := writeScript(spec.Run)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, shell, scriptPath)
	cmd.Env = append(os.Environ(), spec.Env.ToSlice()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	returnCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running bash stage: %w", runErr)
		}
	}
	outputs := core.Output{
		"return_code": returnCode,
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
	}
	if returnCode != 0 {
		return outputs, fmt.Errorf("bash stage exited with code %d: %s", returnCode, stderr.String())
	}
	return outputs, nil
}

func resolveShell() (string, error) {
	for _, candidate := range shellCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no shell found among %v", shellCandidates)
}

func writeScript(src string) (path string, cleanup func(), err error) {
	f, err := afero.TempFile(bashFS, "", "flowforge-bash-*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary script: %w", err)
	}
	name := f.Name()
	if _, err := f.WriteString(src); err != nil {
		f.Close()
		bashFS.Remove(name)
		return "", nil, fmt.Errorf("writing temporary script: %w", err)
	}
	if err := f.Close(); err != nil {
		bashFS.Remove(name)
		return "", nil, fmt.Errorf("closing temporary script: %w", err)
	}
	if err := bashFS.Chmod(name, 0o700); err != nil {
		bashFS.Remove(name)
		return "", nil, fmt.Errorf("marking temporary script executable: %w", err)
	}
	return name, func() { bashFS.Remove(name) }, nil
}
