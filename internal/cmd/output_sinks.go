package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rategate/rategate/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

// resolveOutputFormat prefers --output-format over the configured default.
func resolveOutputFormat(cmd *cobra.Command, configured string) (output.Format, error) {
	value := configured
	if flag := cmd.Flags().Lookup("output-format"); flag != nil && flag.Changed {
		value = flag.Value.String()
	}
	return output.ParseFormat(value)
}

// reportPath turns --out into a file path. A directory target gets a file
// named after the run.
func reportPath(out, runID string, format output.Format) string {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" || trimmed == "-" {
		return trimmed
	}

	isDir := strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, string(os.PathSeparator))
	if info, err := os.Stat(trimmed); err == nil && info.IsDir() {
		isDir = true
	}
	if !isDir {
		return trimmed
	}

	name := sanitizeFilename("rategate-"+runID) + "." + output.Extension(format)
	return filepath.Join(trimmed, name)
}

func openSink(path string, stdout io.Writer) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

func writeRendered(sink *outputSink, rendered string) error {
	if rendered == "" {
		return nil
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	_, err := io.WriteString(sink.writer, rendered)
	return err
}
