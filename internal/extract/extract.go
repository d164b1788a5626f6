// Package extract invokes the external archive extractor as a child
// process.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Run unpacks an archive into dir using the configured command line. The
// {archive} and {outdir} placeholders are substituted; a command with no
// placeholders is treated as 7z-style and gets "-o<dir> <archive>"
// appended. A non-zero exit status is fatal.
func Run(command, archive, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty extractor command")
	}

	substituted := false
	args := make([]string, 0, len(parts)+1)
	for _, p := range parts[1:] {
		if strings.Contains(p, "{archive}") || strings.Contains(p, "{outdir}") {
			substituted = true
		}
		p = strings.ReplaceAll(p, "{archive}", archive)
		p = strings.ReplaceAll(p, "{outdir}", dir)
		args = append(args, p)
	}
	if !substituted {
		args = append(args, "-o"+dir, archive)
	}

	cmd := exec.Command(parts[0], args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("extractor failed on '%s': %w\nstderr: %s", archive, err, msg)
		}
		return fmt.Errorf("extractor failed on '%s': %w", archive, err)
	}
	return nil
}
