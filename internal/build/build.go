// Package build runs the project's build command and locates the
// artifact it produced.  The toolchain itself is the user's business.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	skyerr "skyctl/internal/errors"
	"skyctl/util"
)

// Builder produces the plugin artifact.
type Builder struct {
	// Command is run through the system shell; empty skips the build.
	Command string
	// Dir is the working directory for Command and the base for a
	// relative artifact path.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
	Logger *util.Logger
}

// Build runs Command, if any, and returns the absolute path of
// artifact.  A pattern containing glob metacharacters selects the most
// recently modified match.
func (b *Builder) Build(ctx context.Context, artifact string) (string, error) {
	if b.Command != "" {
		if err := b.run(ctx); err != nil {
			return "", err
		}
	}
	return b.locate(artifact)
}

func (b *Builder) run(ctx context.Context) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", b.Command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", b.Command)
	}
	cmd.Dir = b.Dir
	cmd.Stdout = orDefault(b.Stdout, os.Stderr)
	cmd.Stderr = orDefault(b.Stderr, os.Stderr)

	if b.Logger != nil {
		b.Logger.Info("building: %s", b.Command)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build %q: %w", b.Command, err)
	}
	return nil
}

func (b *Builder) locate(artifact string) (string, error) {
	if artifact == "" {
		return "", &skyerr.ConfigError{
			Field:   "artifact",
			Message: "no artifact to upload",
			Hint:    "pass --artifact or set artifact in skyline.yaml",
		}
	}
	if !filepath.IsAbs(artifact) && b.Dir != "" {
		artifact = filepath.Join(b.Dir, artifact)
	}

	if strings.ContainsAny(artifact, "*?[") {
		matches, err := filepath.Glob(artifact)
		if err != nil {
			return "", &skyerr.ConfigError{Field: "artifact", Value: artifact, Message: err.Error()}
		}
		newest, err := newestFile(matches)
		if err != nil {
			return "", fmt.Errorf("artifact %s: %w", artifact, err)
		}
		artifact = newest
	}

	fi, err := os.Stat(artifact)
	if err != nil {
		return "", fmt.Errorf("artifact: %w", err)
	}
	if fi.IsDir() {
		return "", &skyerr.ConfigError{Field: "artifact", Value: artifact, Message: "is a directory"}
	}
	return filepath.Abs(artifact)
}

func newestFile(paths []string) (string, error) {
	var (
		best    string
		bestMod int64
	)
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			continue
		}
		if mod := fi.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = p, mod
		}
	}
	if best == "" {
		return "", os.ErrNotExist
	}
	return best, nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// TargetDir is where the plugin toolchain writes its output, one
// subdirectory per profile.
const TargetDir = "target/aarch64-skyline-switch"

// DefaultArtifact returns the glob matching fileName in any build
// profile under TargetDir.
func DefaultArtifact(fileName string) string {
	if fileName == "" {
		return ""
	}
	return filepath.Join(TargetDir, "*", fileName)
}
