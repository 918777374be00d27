package shell

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/open-edge-platform/function-packager/internal/utils/logger"
)

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh" // fallback
}

// IsCommandExist checks if a command is resolvable on the current PATH
func IsCommandExist(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// ExecCmd executes a command in workDir and returns its combined output.
// The output is returned verbatim on failure so callers can surface the
// underlying tool's diagnostic unmodified.
func ExecCmd(cmdStr string, workDir string, envVal []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s] in %s", cmdStr, workDir)

	shell := getShell()
	cmd := exec.Command(shell, "-c", cmdStr)
	cmd.Dir = workDir
	if len(envVal) > 0 {
		cmd.Env = append(os.Environ(), envVal...)
	}

	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

// ExecCmdWithStream executes a command in workDir and streams its output
// line by line through the logger while collecting both stdout and
// stderr, so diagnostics the tool writes to stderr survive into the
// returned output.
func ExecCmdWithStream(cmdStr string, workDir string, envVal []string) (string, error) {
	var mu sync.Mutex
	var outputStr string
	log := logger.Logger()
	log.Debugf("Exec: [%s] in %s", cmdStr, workDir)

	shell := getShell()
	cmd := exec.Command(shell, "-c", cmdStr)
	cmd.Dir = workDir
	if len(envVal) > 0 {
		cmd.Env = append(os.Environ(), envVal...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", cmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", cmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", cmdStr, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				mu.Lock()
				outputStr += str + "\n"
				mu.Unlock()
				log.Infof(str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				mu.Lock()
				outputStr += str + "\n"
				mu.Unlock()
				log.Infof(str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr, fmt.Errorf("failed to wait for command %s: %w", cmdStr, err)
	}

	return outputStr, nil
}

// Quote wraps a single shell argument in single quotes, escaping embedded
// quotes, so file paths with spaces survive the sh -c round trip.
func Quote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
