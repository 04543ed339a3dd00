package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"skyctl/config"
	"skyctl/internal/capability"
	skyerr "skyctl/internal/errors"
	"skyctl/internal/fetch"
	"skyctl/internal/ftp"
	"skyctl/internal/layout"
	"skyctl/internal/manifest"
	"skyctl/internal/metrics"
	"skyctl/internal/transport"
	"skyctl/util"
)

// Deps are the collaborators modes are assembled from.  Nil fields get
// working defaults.
type Deps struct {
	Logger   *util.Logger
	Metrics  *metrics.Collector
	Reporter Reporter
	// Dialer is shared by every connection of the operation.  The
	// caller closes it.
	Dialer  transport.Dialer
	Fetcher fetch.Fetcher
	Store   *config.IPStore
	Stdout  io.Writer
	// Dir is the working directory the manifest is searched from.
	Dir string
}

// Build constructs the Mode for op.  The address, the manifest and the
// remote paths of list, rm and cp are checked here, before any network
// I/O.  Install destinations are checked by InstallMode before it
// builds.
func Build(op Op, cfg *config.Config, args []string, deps Deps) (Mode, error) {
	if err := deps.fill(cfg); err != nil {
		return nil, err
	}

	switch op {
	case OpSetIP:
		if len(args) != 1 {
			return nil, fmt.Errorf("set-ip takes exactly one address")
		}
		return &SetIPMode{Store: deps.Store, IP: args[0], Reporter: deps.Reporter}, nil
	case OpShowIP:
		return &ShowIPMode{Store: deps.Store, Stdout: deps.Stdout}, nil
	}

	ip, err := cfg.ResolveIP(deps.Store)
	if err != nil {
		return nil, err
	}
	deps.Logger.Verbose("console address %s", ip)

	mf, err := loadManifest(cfg, deps.Dir)
	if err != nil {
		return nil, err
	}
	tid := cfg.TitleID
	if tid == "" && mf != nil {
		tid = mf.TitleID
	}

	switch op {
	case OpInstall:
		return buildInstall(cfg, ip, mf, deps), nil
	case OpRun:
		return buildRun(cfg, ip, tid, mf, deps), nil
	case OpListen:
		return buildListen(cfg, ip, deps), nil
	case OpRestart:
		if tid == "" {
			return nil, skyerr.ErrNoTitleID
		}
		return buildRestart(cfg, ip, tid, deps), nil
	case OpList:
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		} else if tid == "" {
			return nil, skyerr.ErrNoTitleID
		} else {
			dir = layout.PluginsPath(tid)
		}
		return buildConnect(cfg, ip, &capability.List{Dir: dir}, deps), nil
	case OpRemove:
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		defaultName := ""
		if mf != nil {
			defaultName = mf.DefaultArtifactName()
		}
		p, err := layout.RemoteFile(tid, name, defaultName)
		if err != nil {
			return nil, err
		}
		return buildConnect(cfg, ip, &capability.Remove{Path: p}, deps), nil
	case OpCopy:
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("cp takes a local file and an optional destination")
		}
		dest := ""
		if len(args) == 2 {
			dest = args[1]
		}
		p, err := layout.CopyDestination(tid, args[0], dest)
		if err != nil {
			return nil, err
		}
		return buildConnect(cfg, ip, &capability.Copy{Src: args[0], Dest: p}, deps), nil
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}

// BuildDialer creates the transport.Dialer for cfg: a tunnelled one
// when a gateway is configured, plain TCP otherwise.
func BuildDialer(cfg *config.Config, logger *util.Logger) (transport.Dialer, error) {
	sc, err := cfg.TunnelConfig()
	if err != nil {
		return nil, err
	}
	if sc != nil {
		return transport.NewSSHDialer(sc, logger), nil
	}
	return &transport.TCPDialer{Timeout: cfg.ConnTimeout}, nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, ip string, c capability.Capability, deps Deps) Mode {
	return &ConnectMode{
		Dialer:     deps.Dialer,
		Address:    cfg.FTPAddr(ip),
		FTP:        ftpOptions(cfg, deps),
		Capability: c,
		Logger:     deps.Logger,
		Stdout:     deps.Stdout,
	}
}

func buildInstall(cfg *config.Config, ip string, mf *manifest.Manifest, deps Deps) *InstallMode {
	return &InstallMode{
		Config:   cfg,
		Manifest: mf,
		Dir:      deps.Dir,
		Dialer:   deps.Dialer,
		Address:  cfg.FTPAddr(ip),
		Fetcher:  deps.Fetcher,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
		Reporter: deps.Reporter,
	}
}

func buildListen(cfg *config.Config, ip string, deps Deps) *ListenMode {
	return &ListenMode{
		Dialer:   deps.Dialer,
		Address:  cfg.LogAddr(ip),
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
		Reporter: deps.Reporter,
		Stdout:   deps.Stdout,
	}
}

func buildRestart(cfg *config.Config, ip, tid string, deps Deps) *RestartMode {
	return &RestartMode{
		Dialer:   deps.Dialer,
		Address:  cfg.RestartAddr(ip),
		TitleID:  tid,
		Reporter: deps.Reporter,
	}
}

func buildRun(cfg *config.Config, ip, tid string, mf *manifest.Manifest, deps Deps) *RunMode {
	m := &RunMode{
		Install: buildInstall(cfg, ip, mf, deps),
		Listen:  buildListen(cfg, ip, deps),
		Delay:   config.DefaultRestartDelay,
		Logger:  deps.Logger,
	}
	if cfg.Restart {
		m.Restart = buildRestart(cfg, ip, tid, deps)
	}
	return m
}

// ── shared helpers ───────────────────────────────────────────────────

func ftpOptions(cfg *config.Config, deps Deps) ftp.Options {
	return ftp.Options{
		Timeout:           cfg.Timeout,
		PostWriteDelay:    cfg.PostWriteDelay,
		LenientCompletion: cfg.LenientStor,
		Logger:            deps.Logger,
		Metrics:           deps.Metrics,
	}
}

// loadManifest loads the manifest named in cfg, or the nearest one
// above dir.  Having no manifest at all is not an error.
func loadManifest(cfg *config.Config, dir string) (*manifest.Manifest, error) {
	p := cfg.ManifestPath
	if p == "" {
		found, err := manifest.Find(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		p = found
	}
	return manifest.Load(p)
}

func (d *Deps) fill(cfg *config.Config) error {
	if d.Logger == nil {
		d.Logger = util.NewLogger(cfg.Verbose)
	}
	if d.Reporter == nil {
		d.Reporter = LogReporter{Logger: d.Logger}
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		d.Dir = wd
	}
	if d.Store == nil {
		s, err := config.DefaultIPStore()
		if err != nil {
			return err
		}
		d.Store = s
	}
	if d.Dialer == nil {
		dialer, err := BuildDialer(cfg, d.Logger)
		if err != nil {
			return err
		}
		d.Dialer = dialer
	}
	if d.Fetcher == nil {
		d.Fetcher = fetch.NewHTTPFetcher(d.Logger, fetch.Options{
			Timeout:  cfg.FetchTimeout,
			RetryMax: cfg.FetchRetries,
		})
	}
	return nil
}

// LogReporter reports through a Logger.
type LogReporter struct {
	Logger *util.Logger
}

func (r LogReporter) Status(msg string)  { r.Logger.Info("%s", msg) }
func (r LogReporter) Success(msg string) { r.Logger.Info("%s", msg) }
func (r LogReporter) Warning(msg string) { r.Logger.Warn("%s", msg) }
