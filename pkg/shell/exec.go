package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
)

// Number of trailing stderr lines kept for ExitErrorVerbose
const stderrTailLines = 20

// Longest line that RunStreaming will log
const maxLineLength = 1024 * 1024

// We prefer to return stderr over the process exit code
type ExitErrorVerbose struct {
	E      *exec.ExitError
	Stderr string
}

func (e ExitErrorVerbose) Error() string {
	if len(e.Stderr) != 0 {
		return e.Stderr
	}
	return e.E.Error()
}

func (e ExitErrorVerbose) Unwrap() error {
	return e.E
}

func (e ExitErrorVerbose) ExitCode() int {
	return e.E.ExitCode()
}

// Run a process to completion, and return its stdout
func Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ExitErrorVerbose{E: exitErr, Stderr: strings.TrimSpace(string(exitErr.Stderr))}
		}
		return "", err
	}
	return string(out), nil
}

// RunStreaming runs a long-lived process, sending every line of its stdout and stderr to the log.
// If the process fails, the returned ExitErrorVerbose holds the last lines of stderr.
func RunStreaming(ctx context.Context, log logs.Log, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	var tail []string
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pump(stdout, func(line string) {
			log.Infof("%v: %v", name, line)
		}); err != nil {
			log.Warnf("%v: stdout: %v", name, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := pump(stderr, func(line string) {
			log.Infof("%v: %v", name, line)
			tail = append(tail, line)
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
		}); err != nil {
			log.Warnf("%v: stderr: %v", name, err)
		}
	}()
	// The pipes must be drained before Wait closes them
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ExitErrorVerbose{E: exitErr, Stderr: strings.Join(tail, "\n")}
		}
		return err
	}
	return nil
}

// pump sends every line of r to onLine. If the scanner gives up (eg a line longer
// than maxLineLength), the rest of r is discarded, so that the child never blocks
// on a full pipe.
func pump(r io.Reader, onLine func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	err := scanner.Err()
	if err != nil {
		io.Copy(io.Discard, r)
	}
	return err
}
