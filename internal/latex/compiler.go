package latex

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

var (
	// ErrNoDocument wraps every per-document compilation failure.
	ErrNoDocument = errors.New("no document produced")
	// ErrToolchainMissing is returned when the LaTeX binary is not installed.
	ErrToolchainMissing = errors.New("latex toolchain not installed")
)

//go:embed templates/*
var templateFS embed.FS

const (
	// DefaultBin is the toolchain invoked when none is configured.
	DefaultBin = "pdflatex"
	// DefaultTimeout bounds a single toolchain run.
	DefaultTimeout = 30 * time.Second

	passes   = 2
	bodyFile = "body.tex"
	mainFile = "main.tex"
)

var mainTemplate = template.Must(
	template.New(mainFile).Delims("<<", ">>").ParseFS(templateFS, "templates/"+mainFile),
)

// Job is one rendered body to compile.
type Job struct {
	Kind      model.DocumentKind
	Variation int
	Subject   string
	Body      string
}

// Compiler runs the external LaTeX toolchain in isolated working
// directories. At most Workers compilations run at the same time.
type Compiler struct {
	bin     string
	timeout time.Duration
	slots   chan struct{}
}

// Options configures a Compiler. Zero values select the defaults.
type Options struct {
	Bin     string
	Timeout time.Duration
	Workers int
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.Bin == "" {
		opts.Bin = DefaultBin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Compiler{
		bin:     opts.Bin,
		timeout: opts.Timeout,
		slots:   make(chan struct{}, opts.Workers),
	}
}

// CheckToolchain verifies the LaTeX binary is on PATH.
func (c *Compiler) CheckToolchain() error {
	if _, err := exec.LookPath(c.bin); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolchainMissing, c.bin, err)
	}
	return nil
}

// Compile turns a rendered body into a PDF. Every failure wraps
// ErrNoDocument; the caller decides whether to go on.
func (c *Compiler) Compile(ctx context.Context, job Job) (*model.Document, error) {
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoDocument, ctx.Err())
	}

	dir, err := os.MkdirTemp("", fmt.Sprintf("examgen-%s-%d-*", job.Kind, job.Variation))
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", ErrNoDocument, err)
	}
	defer os.RemoveAll(dir)

	if err := c.materialize(dir, job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	// Two passes resolve the page count in the footer.
	for pass := 1; pass <= passes; pass++ {
		out, runErr := c.run(runCtx, dir)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			slog.Warn("latex timed out", "kind", job.Kind, "variation", job.Variation, "timeout", c.timeout)
			return nil, fmt.Errorf("%w: %s timed out after %s", ErrNoDocument, c.bin, c.timeout)
		}
		if runErr != nil {
			slog.Warn("latex failed", "kind", job.Kind, "variation", job.Variation, "pass", pass,
				"error", runErr, "log_tail", tail(out, 15))
			return nil, fmt.Errorf("%w: %s: %v", ErrNoDocument, c.bin, runErr)
		}
	}

	pdf, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(mainFile, ".tex")+".pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrNoDocument, err)
	}
	slog.Debug("latex compiled", "kind", job.Kind, "variation", job.Variation,
		"bytes", len(pdf), "duration", time.Since(start))

	return &model.Document{Kind: job.Kind, Variation: job.Variation, Data: pdf}, nil
}

func (c *Compiler) run(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-no-shell-escape",
		mainFile,
	)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// materialize writes the supporting files, the substituted main file and
// the body into dir.
func (c *Compiler) materialize(dir string, job Job) error {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == mainFile {
			continue
		}
		data, err := fs.ReadFile(templateFS, "templates/"+e.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644); err != nil {
			return err
		}
	}

	var main bytes.Buffer
	err = mainTemplate.Execute(&main, struct {
		Subject   string
		Variation int
		Kind      model.DocumentKind
	}{
		Subject:   Escape(job.Subject),
		Variation: job.Variation,
		Kind:      job.Kind,
	})
	if err != nil {
		return fmt.Errorf("execute %s: %w", mainFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, mainFile), main.Bytes(), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, bodyFile), []byte(job.Body), 0o644)
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
