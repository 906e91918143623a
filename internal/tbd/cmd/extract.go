package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"tbd/internal/extract"
	"tbd/internal/stub"
	"tbd/internal/ui/colorize"
)

const stubExt = ".tbd"

// extractor writes the stubs for the root command's inputs.
type extractor struct {
	cfg   *Config
	out   io.Writer
	log   *log.Logger
	color bool

	written int
	skipped int
}

func (e *extractor) run(ctx context.Context, paths []string) error {
	toDir, err := e.outputIsDir(paths)
	if err != nil {
		return err
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if err := e.fail(p, err); err != nil {
				return err
			}
			continue
		}
		if !info.IsDir() {
			if err := e.file(ctx, "", p, toDir); err != nil {
				return err
			}
			continue
		}
		err = extract.Walk(p, e.cfg.Recurse, func(path string, err error) error {
			if err != nil {
				return e.fail(path, err)
			}
			return e.file(ctx, p, path, toDir)
		})
		if err != nil {
			return err
		}
	}

	e.log.Debug("done", "written", e.written, "skipped", e.skipped)
	return nil
}

// outputIsDir decides whether --output names a directory. It does when there
// are several inputs, any input is a directory, or it already is one.
func (e *extractor) outputIsDir(paths []string) (bool, error) {
	if e.cfg.Output == "" {
		return false, nil
	}
	if info, err := os.Stat(e.cfg.Output); err == nil && info.IsDir() {
		return true, nil
	}
	dir := len(paths) > 1
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dir = true
		}
	}
	if !dir {
		return false, nil
	}
	if err := os.MkdirAll(e.cfg.Output, 0o755); err != nil {
		return false, errors.Wrap(err, "create output directory")
	}
	return true, nil
}

// fail reports a failing input. It returns nil when errors are ignored.
func (e *extractor) fail(path string, err error) error {
	if !e.cfg.IgnoreErrors {
		return errors.Wrapf(err, "%s", path)
	}
	e.skipped++
	e.log.Warn("skipping", "path", path, "err", err)
	return nil
}

// file extracts one input found below root, or given directly when root is
// empty.
func (e *extractor) file(ctx context.Context, root, path string, toDir bool) error {
	res, err := extract.File(ctx, path, e.cfg.ExtractOptions(e.log))
	if err != nil {
		return e.fail(path, err)
	}

	var buf bytes.Buffer
	if err := stub.Write(&buf, res); err != nil {
		return e.fail(path, err)
	}

	dest := e.destination(root, path, toDir)
	if dest == "" {
		return e.print(buf.String())
	}
	if e.cfg.NoOverwrite {
		if _, err := os.Stat(dest); err == nil {
			e.log.Info("exists, not overwriting", "path", dest)
			e.skipped++
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write stub")
	}
	e.written++
	e.log.Debug("wrote stub", "input", path, "output", dest, "exports", res.Exports.Len())
	return nil
}

func (e *extractor) print(doc string) error {
	if e.color {
		if colored, err := colorize.Stub(doc); err == nil {
			doc = colored
		}
	}
	_, err := io.WriteString(e.out, doc)
	e.written++
	return errors.Wrap(err, "write stub")
}

// destination returns the output file for path, or "" for stdout.
func (e *extractor) destination(root, path string, toDir bool) string {
	if e.cfg.Output == "" {
		return ""
	}
	if !toDir {
		return e.cfg.Output
	}

	name := filepath.Base(path)
	if root != "" && e.cfg.PreserveSubdirs {
		if rel, err := filepath.Rel(root, path); err == nil {
			name = rel
		}
	}
	return filepath.Join(e.cfg.Output, stubName(name, e.cfg.ReplaceExtension))
}

// stubName appends .tbd to name, or replaces its extension with it.
func stubName(name string, replace bool) string {
	if replace {
		base := filepath.Base(name)
		if ext := filepath.Ext(base); ext != "" && ext != base {
			name = strings.TrimSuffix(name, ext)
		}
	}
	return name + stubExt
}
