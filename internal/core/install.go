package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"skyctl/config"
	"skyctl/internal/build"
	"skyctl/internal/deploy"
	"skyctl/internal/fetch"
	"skyctl/internal/ftp"
	"skyctl/internal/layout"
	"skyctl/internal/manifest"
	"skyctl/internal/metrics"
	"skyctl/internal/transport"
	"skyctl/util"
)

// InstallMode builds the plugin and deploys it with everything it
// needs.
type InstallMode struct {
	Config *config.Config
	// Manifest is the project file, or nil when there is none.
	Manifest *manifest.Manifest
	// Dir is the directory relative artifact paths are taken from.
	Dir string

	Dialer   transport.Dialer
	Address  string
	Fetcher  fetch.Fetcher
	Logger   *util.Logger
	Metrics  *metrics.Collector
	Reporter Reporter

	// Stdout receives build output; defaults to os.Stderr.
	Stdout io.Writer

	// Result is set by a successful Run.
	Result *deploy.Result
}

// checkFileName stands in for the artifact name while the destination
// is checked before building.
const checkFileName = "plugin" + layout.PluginExt

func (m *InstallMode) Run(ctx context.Context) error {
	// Title id and install path are checked before the build runs.
	if _, err := deploy.NewPlan(m.request(checkFileName)); err != nil {
		return err
	}

	artifact, err := m.build(ctx)
	if err != nil {
		return err
	}

	cfg := m.Config
	plan, err := deploy.NewPlan(m.request(filepath.Base(artifact)))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(artifact)
	if err != nil {
		return err
	}

	orch := &deploy.Orchestrator{
		Dialer: m.Dialer,
		Addr:   m.Address,
		FTP: ftp.Options{
			Timeout:           cfg.Timeout,
			PostWriteDelay:    cfg.PostWriteDelay,
			LenientCompletion: cfg.LenientStor,
		},
		Fetcher: m.Fetcher,
		Logger:  m.Logger,
		Metrics: m.Metrics,
		Workers: cfg.Workers,
		Progress: func(step deploy.Step, msg string) {
			if msg == deploy.MsgConnected {
				m.Reporter.Success(msg)
				return
			}
			m.Reporter.Status(msg)
		},
	}

	res, err := orch.Deploy(ctx, plan, data)
	if res != nil {
		for _, w := range res.Warnings {
			m.Reporter.Warning(w)
		}
	}
	if err != nil {
		return err
	}
	m.Result = res
	m.Reporter.Success(fmt.Sprintf("Installed %s", res.InstallPath))
	return nil
}

func (m *InstallMode) request(artifactName string) deploy.Request {
	cfg := m.Config
	return deploy.RequestFromManifest(deploy.Request{
		TitleID:      cfg.TitleID,
		InstallPath:  cfg.InstallPath,
		FileName:     cfg.FileName,
		ArtifactName: artifactName,
		RuntimeURL:   cfg.RuntimeURL,
	}, m.Manifest)
}

// build runs the build command, if any, and returns the artifact path.
// Flags win over the manifest; a flag path is relative to Dir, a
// manifest path to the manifest's directory.
func (m *InstallMode) build(ctx context.Context) (string, error) {
	cfg := m.Config
	b := &build.Builder{
		Command: cfg.BuildCommand,
		Dir:     m.Dir,
		Stdout:  m.Stdout,
		Logger:  m.Logger,
	}
	artifact := cfg.Artifact
	if artifact != "" && !filepath.IsAbs(artifact) && m.Dir != "" {
		artifact = filepath.Join(m.Dir, artifact)
	}

	if mf := m.Manifest; mf != nil {
		b.Dir = mf.Dir
		if b.Command == "" {
			b.Command = mf.BuildCommand
		}
		if artifact == "" {
			artifact = mf.Artifact
		}
		if artifact == "" {
			artifact = build.DefaultArtifact(mf.DefaultArtifactName())
		}
	}

	if b.Command != "" {
		m.Reporter.Status("Building...")
	}
	return b.Build(ctx, artifact)
}
