// Package deploy sequences a deployment run against the console: it
// provisions the title's directories, installs whatever the plugin
// needs that is missing (runtime, manifest descriptor, dependencies),
// and uploads the artifact.
//
// Every FTP command is issued from the goroutine calling Deploy over a
// single control connection.  Only dependency downloads run in
// parallel.
package deploy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/fetch"
	"skyctl/internal/ftp"
	"skyctl/internal/layout"
	"skyctl/internal/manifest"
	"skyctl/internal/metrics"
	"skyctl/internal/npdm"
	"skyctl/internal/transport"
	"skyctl/util"
)

// DefaultWorkers bounds concurrent dependency downloads.
const DefaultWorkers = 4

// AnonymousUser is sent as both user name and password.
const AnonymousUser = "anonymous"

// MsgConnected is the progress line reported once logged in.
const MsgConnected = "Connected!"

// WarnMinimalNpdm is reported whenever main.npdm is generated from the
// embedded template.
const WarnMinimalNpdm = "main.npdm was generated from the built-in minimal template, which grants no services or syscalls; " +
	"set custom_npdm in skyline.yaml to the title's own descriptor if the game fails to launch"

// Orchestrator runs deployment plans against one console.
type Orchestrator struct {
	Dialer transport.Dialer
	// Addr is the console's FTP address, "ip:port".
	Addr string
	// FTP tunes the control connection.  Its Logger and Metrics
	// default to the orchestrator's.
	FTP     ftp.Options
	Fetcher fetch.Fetcher

	Logger  *util.Logger
	Metrics *metrics.Collector

	// Workers bounds parallel dependency downloads.
	Workers int

	// Progress receives user-facing status lines.  When nil they are
	// logged at info level.
	Progress func(step Step, msg string)
}

// Result summarises a completed run.
type Result struct {
	RunID string
	// InstallPath is where the artifact was uploaded.
	InstallPath string
	// Installed lists the components that were missing and got
	// installed: "runtime", "npdm", and dependency names.
	Installed []string
	Warnings  []string
}

type run struct {
	o      *Orchestrator
	plan   *Plan
	conn   *ftp.Conn
	data   []byte
	result *Result
}

// Deploy executes plan and uploads artifact.  On failure the returned
// error is a *errors.StepError naming the step that aborted the run.
func (o *Orchestrator) Deploy(ctx context.Context, plan *Plan, artifact []byte) (*Result, error) {
	if o.Logger == nil {
		o.Logger = util.NewLogger(0)
	}
	runID := o.Metrics.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}
	o.Logger.Verbose("deployment %s: %s -> %s", runID, o.Addr, plan.Install.File)

	r := &run{o: o, plan: plan, data: artifact, result: &Result{RunID: runID}}
	defer func() {
		if r.conn != nil {
			r.conn.Close()
		}
	}()

	for _, step := range plan.Steps {
		o.Logger.Debug("step %s", step)
		if err := r.exec(ctx, step); err != nil {
			o.Metrics.RecordError(err.Error())
			return r.result, skyerr.Step(string(step), err)
		}
	}
	r.result.InstallPath = plan.Install.File
	return r.result, nil
}

func (r *run) exec(ctx context.Context, step Step) error {
	switch step {
	case StepConnect:
		return r.connect(ctx)
	case StepEnsureBaseDirs:
		r.ensureBaseDirs()
		return nil
	case StepDetectLegacyRuntime:
		r.detectLegacyRuntime(ctx)
		return nil
	case StepEnsureRuntime:
		return r.ensureRuntime(ctx)
	case StepEnsureManifestDescriptor:
		return r.ensureManifestDescriptor(ctx)
	case StepEnsureDependencies:
		return r.ensureDependencies(ctx)
	case StepUpload:
		return r.upload(ctx)
	}
	return fmt.Errorf("unknown step %q", step)
}

func (r *run) progress(step Step, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if r.o.Progress != nil {
		r.o.Progress(step, msg)
		return
	}
	r.o.Logger.Info("%s", msg)
}

func (r *run) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.result.Warnings = append(r.result.Warnings, msg)
	r.o.Logger.Warn("%s", msg)
}

// ── Steps ────────────────────────────────────────────────────────────

func (r *run) connect(ctx context.Context) error {
	opts := r.o.FTP
	if opts.Logger == nil {
		opts.Logger = r.o.Logger
	}
	if opts.Metrics == nil {
		opts.Metrics = r.o.Metrics
	}

	r.progress(StepConnect, "Connecting to %s...", r.o.Addr)
	conn, err := ftp.Dial(ctx, r.o.Dialer, r.o.Addr, opts)
	if err != nil {
		return err
	}
	if err := conn.Login(AnonymousUser, AnonymousUser); err != nil {
		conn.Close()
		return err
	}
	r.conn = conn
	r.progress(StepConnect, MsgConnected)
	return nil
}

// ensureBaseDirs creates each directory in order.  Most of them exist
// already, so failures are expected and ignored.
func (r *run) ensureBaseDirs() {
	r.progress(StepEnsureBaseDirs, "Ensuring directory exists...")
	for _, d := range r.plan.Dirs {
		if err := r.conn.Mkdir(d); err != nil {
			r.o.Logger.Debug("mkdir %s: %v", d, err)
		}
	}
}

// detectLegacyRuntime warns when exefs holds more than one subsdk
// module, which usually means an older runtime was installed under a
// different slot.
func (r *run) detectLegacyRuntime(ctx context.Context) {
	listing, err := r.conn.List(ctx, layout.ExefsPath(r.plan.TitleID)+"/")
	if err != nil {
		r.o.Logger.Debug("legacy runtime scan: %v", err)
		return
	}
	if strings.Count(listing, "subsdk") > 1 {
		r.warn("an old install of the runtime is detected, this may cause problems")
	}
}

func (r *run) ensureRuntime(ctx context.Context) error {
	p := layout.RuntimePath(r.plan.TitleID, r.plan.RuntimeModule)
	if r.probe(ctx, p) {
		r.o.Logger.Verbose("runtime present at %s", p)
		return nil
	}
	r.o.Metrics.Remediation()

	r.progress(StepEnsureRuntime, "Runtime not installed for the given title, downloading...")
	archive, err := r.o.Fetcher.Fetch(ctx, r.plan.RuntimeURL)
	if err != nil {
		return &skyerr.RemediationError{Component: "runtime", Err: err}
	}
	module, err := fetch.ExtractRuntime(archive, fetch.RuntimeEntry)
	if err != nil {
		return &skyerr.RemediationError{Component: "runtime", Err: err}
	}

	r.progress(StepEnsureRuntime, "Installing over %s...", r.plan.RuntimeModule)
	if err := r.conn.Put(ctx, p, module); err != nil {
		return err
	}
	r.result.Installed = append(r.result.Installed, "runtime")
	return nil
}

func (r *run) ensureManifestDescriptor(ctx context.Context) error {
	p := layout.NpdmPath(r.plan.TitleID)
	if r.probe(ctx, p) {
		r.o.Logger.Verbose("npdm present at %s", p)
		return nil
	}
	r.o.Metrics.Remediation()

	desc, err := r.descriptor()
	if err != nil {
		return &skyerr.RemediationError{Component: "npdm", Err: err}
	}
	if err := r.conn.Put(ctx, p, desc); err != nil {
		return err
	}
	r.result.Installed = append(r.result.Installed, "npdm")
	return nil
}

func (r *run) descriptor() ([]byte, error) {
	if r.plan.CustomNpdm == "" {
		r.progress(StepEnsureManifestDescriptor, "Npdm not installed for the given title, generating and installing...")
		r.warn("%s", WarnMinimalNpdm)
		return npdm.Generate(r.plan.TitleID)
	}

	r.progress(StepEnsureManifestDescriptor, "Npdm not installed for the given title, installing %s...", r.plan.CustomNpdm)
	desc, err := os.ReadFile(r.plan.CustomNpdm)
	if err != nil {
		return nil, err
	}
	want, _ := npdm.ParseTitleID(r.plan.TitleID)
	if got, err := npdm.TitleID(desc); err == nil && got != want {
		r.warn("custom npdm is for title %s, not %s", npdm.FormatTitleID(got), r.plan.TitleID)
	}
	return desc, nil
}

func (r *run) ensureDependencies(ctx context.Context) error {
	var missing []manifest.Dependency
	for _, dep := range r.plan.Dependencies {
		if r.probe(ctx, layout.PluginPath(r.plan.TitleID, dep.Name)) {
			r.o.Logger.Verbose("dependency %s present", dep.Name)
			continue
		}
		missing = append(missing, dep)
	}
	if len(missing) == 0 {
		return nil
	}

	for _, dep := range missing {
		r.o.Metrics.Remediation()
		r.progress(StepEnsureDependencies, "Downloading dependency %s...", dep.Name)
	}
	payloads, err := r.prefetch(ctx, missing)
	if err != nil {
		return err
	}

	for i, dep := range missing {
		r.progress(StepEnsureDependencies, "Installing dependency %s...", dep.Name)
		if err := r.conn.Put(ctx, layout.PluginPath(r.plan.TitleID, dep.Name), payloads[i]); err != nil {
			return err
		}
		r.result.Installed = append(r.result.Installed, dep.Name)
	}
	return nil
}

// prefetch downloads deps on a bounded pool.  Results keep the order of
// deps; the first failure in that order is returned.
func (r *run) prefetch(ctx context.Context, deps []manifest.Dependency) ([][]byte, error) {
	workers := r.o.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool := pond.NewPool(min(workers, len(deps)), pond.WithContext(ctx))
	defer pool.StopAndWait()

	payloads := make([][]byte, len(deps))
	tasks := make([]pond.Task, len(deps))
	for i, dep := range deps {
		tasks[i] = pool.SubmitErr(func() error {
			data, err := r.o.Fetcher.Fetch(ctx, dep.URL)
			if err != nil {
				return err
			}
			payloads[i] = data
			return nil
		})
	}

	for i, t := range tasks {
		if err := t.Wait(); err != nil {
			return nil, &skyerr.RemediationError{Component: "dependency " + deps[i].Name, Err: err}
		}
	}
	return payloads, nil
}

func (r *run) upload(ctx context.Context) error {
	r.progress(StepUpload, "Transferring file to %s...", r.plan.Install.File)
	return r.conn.Put(ctx, r.plan.Install.File, r.data)
}

// probe reports whether p exists.  A failed probe counts as absent so
// the component is reinstalled.
func (r *run) probe(ctx context.Context, p string) bool {
	ok, err := r.conn.Exists(ctx, p)
	if err != nil {
		r.o.Logger.Debug("probe %s: %v", p, err)
		return false
	}
	return ok
}
