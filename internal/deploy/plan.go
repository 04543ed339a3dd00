package deploy

import (
	"skyctl/internal/layout"
	"skyctl/internal/manifest"
	"skyctl/internal/npdm"
)

// Step names one stage of a deployment run.
type Step string

const (
	StepConnect                  Step = "connect"
	StepEnsureBaseDirs           Step = "ensure-base-dirs"
	StepDetectLegacyRuntime      Step = "detect-legacy-runtime"
	StepEnsureRuntime            Step = "ensure-runtime"
	StepEnsureManifestDescriptor Step = "ensure-manifest-descriptor"
	StepEnsureDependencies       Step = "ensure-dependencies"
	StepUpload                   Step = "upload"
)

// Steps is the fixed order a run walks through.
var Steps = []Step{
	StepConnect,
	StepEnsureBaseDirs,
	StepDetectLegacyRuntime,
	StepEnsureRuntime,
	StepEnsureManifestDescriptor,
	StepEnsureDependencies,
	StepUpload,
}

// Request is everything a run needs to know, gathered from flags and
// the project manifest.
type Request struct {
	TitleID string

	// InstallPath is an optional "sd:/..." or "rom:/..." destination.
	InstallPath string
	// FileName overrides the uploaded file's name.
	FileName string
	// ArtifactName is the local artifact's base name.
	ArtifactName string

	// RuntimeModule is the exefs slot the runtime goes in.
	RuntimeModule string
	// RuntimeURL locates the runtime distribution archive.
	RuntimeURL string
	// CustomNpdm is a local descriptor uploaded instead of the
	// generated one.
	CustomNpdm string

	Dependencies []manifest.Dependency
}

// RequestFromManifest fills the manifest-derived fields of a Request.
// Fields already set on base take precedence.
func RequestFromManifest(base Request, m *manifest.Manifest) Request {
	if m == nil {
		return base
	}
	if base.TitleID == "" {
		base.TitleID = m.TitleID
	}
	if base.RuntimeModule == "" {
		base.RuntimeModule = m.RuntimeModule
	}
	if base.CustomNpdm == "" {
		base.CustomNpdm = m.Resolve(m.CustomNpdm)
	}
	if base.ArtifactName == "" {
		base.ArtifactName = m.DefaultArtifactName()
	}
	if base.Dependencies == nil {
		base.Dependencies = m.Dependencies
	}
	return base
}

// Plan is a resolved run: every remote path is computed before the
// first byte goes over the network.
type Plan struct {
	TitleID string
	// BaseDir is the title's content directory.
	BaseDir string
	Install layout.Install
	// Dirs lists the directories created by ensure-base-dirs, in order.
	Dirs []string

	RuntimeModule string
	RuntimeURL    string
	CustomNpdm    string
	Dependencies  []manifest.Dependency

	Steps []Step
}

// NewPlan validates req and resolves its remote paths.
func NewPlan(req Request) (*Plan, error) {
	if _, err := npdm.ParseTitleID(req.TitleID); err != nil {
		return nil, err
	}

	in, err := layout.Resolve(layout.InstallRequest{
		Path:            req.InstallPath,
		FileName:        req.FileName,
		TitleID:         req.TitleID,
		DefaultFileName: req.ArtifactName,
	})
	if err != nil {
		return nil, err
	}

	module := req.RuntimeModule
	if module == "" {
		module = layout.DefaultRuntimeModule
	}

	p := &Plan{
		TitleID:       req.TitleID,
		BaseDir:       layout.GamePath(req.TitleID),
		Install:       in,
		RuntimeModule: module,
		RuntimeURL:    req.RuntimeURL,
		CustomNpdm:    req.CustomNpdm,
		Dependencies:  req.Dependencies,
		Steps:         append([]Step(nil), Steps...),
	}
	p.Dirs = append(p.Dirs, p.BaseDir, layout.ExefsPath(req.TitleID))
	p.Dirs = append(p.Dirs, in.Chain...)
	return p, nil
}
