// Package layout knows where things live on the console's SD card:
// the per-title content directory, its exefs and romfs trees, the
// plugin directory, and where an uploaded artifact should land.
package layout

import (
	"path"
	"strings"

	skyerr "skyctl/internal/errors"
)

const (
	// ContentRoot holds one directory per title id.
	ContentRoot = "/atmosphere/contents"

	// DefaultRuntimeModule is the exefs slot the runtime occupies.
	DefaultRuntimeModule = "subsdk9"

	// NpdmName is the manifest descriptor's file name inside exefs.
	NpdmName = "main.npdm"

	// PluginExt marks a path segment as a file rather than a directory.
	PluginExt = ".nro"

	sdPrefix  = "sd:/"
	romPrefix = "rom:/"

	pluginsRel = "skyline/plugins"
)

// GamePath returns <root>/<tid>.
func GamePath(tid string) string { return ContentRoot + "/" + tid }

// ExefsPath returns <root>/<tid>/exefs.
func ExefsPath(tid string) string { return GamePath(tid) + "/exefs" }

// RomfsPath returns <root>/<tid>/romfs.
func RomfsPath(tid string) string { return GamePath(tid) + "/romfs" }

// PluginsPath returns the default plugin directory for tid.
func PluginsPath(tid string) string { return RomfsPath(tid) + "/" + pluginsRel }

// PluginPath returns the path of the plugin file name under tid.
func PluginPath(tid, name string) string { return PluginsPath(tid) + "/" + name }

// RuntimePath returns the exefs path of the runtime module.  An empty
// module means DefaultRuntimeModule.
func RuntimePath(tid, module string) string {
	if module == "" {
		module = DefaultRuntimeModule
	}
	return ExefsPath(tid) + "/" + module
}

// NpdmPath returns the exefs path of the manifest descriptor.
func NpdmPath(tid string) string { return ExefsPath(tid) + "/" + NpdmName }

// InstallRequest describes where the user asked for an artifact to go.
type InstallRequest struct {
	// Path is an optional "sd:/..." or "rom:/..." location.
	Path string
	// FileName overrides the artifact's own name when Path names a
	// directory.
	FileName string
	TitleID  string
	// DefaultFileName is the artifact's own base name.
	DefaultFileName string
}

// Install is a resolved destination.
type Install struct {
	// File is the absolute remote path of the artifact.
	File string
	// Dir is the directory File lives in.
	Dir string
	// Rom is true when the artifact lands under the title's romfs.
	Rom bool
	// Chain lists the directories to create, outermost first.  For rom
	// installs it starts at the romfs root.
	Chain []string
}

// ResolveInstallPath returns the absolute remote path the artifact is
// uploaded to.  See Resolve.
func ResolveInstallPath(req InstallRequest) (string, error) {
	in, err := Resolve(req)
	if err != nil {
		return "", err
	}
	return in.File, nil
}

// Resolve computes the destination for req without touching the
// network:
//
//	sd:/rest   -> /rest
//	rom:/rest  -> <root>/<tid>/romfs/rest
//	(empty)    -> <root>/<tid>/romfs/skyline/plugins
//
// A last segment ending in ".nro" is the file name; otherwise FileName,
// or failing that DefaultFileName, is appended.  Any other prefix is a
// *errors.PathError.
func Resolve(req InstallRequest) (Install, error) {
	var (
		rest string
		rom  bool
	)
	switch p := req.Path; {
	case p == "":
		rest, rom = pluginsRel, true
	case strings.HasPrefix(p, romPrefix):
		rest, rom = strings.TrimPrefix(p, romPrefix), true
	case strings.HasPrefix(p, sdPrefix):
		rest = strings.TrimPrefix(p, sdPrefix)
	default:
		return Install{}, &skyerr.PathError{Path: p, Message: `must start with "sd:/" or "rom:/"`}
	}

	if rom && req.TitleID == "" {
		return Install{}, skyerr.ErrNoTitleID
	}

	segs := splitPath(rest)
	name := ""
	if n := len(segs); n > 0 && strings.HasSuffix(segs[n-1], PluginExt) {
		name, segs = segs[n-1], segs[:n-1]
	}
	for _, s := range segs {
		if s == ".." {
			return Install{}, &skyerr.PathError{Path: req.Path, Message: `".." is not allowed`}
		}
	}
	if name == "" {
		name = req.FileName
	}
	if name == "" {
		name = req.DefaultFileName
	}
	if name == "" || strings.Contains(name, "/") {
		return Install{}, &skyerr.PathError{Path: req.Path, Message: "no usable file name"}
	}

	in := Install{Rom: rom}
	dir := ""
	if rom {
		dir = RomfsPath(req.TitleID)
		in.Chain = append(in.Chain, dir)
	}
	for _, s := range segs {
		dir += "/" + s
		in.Chain = append(in.Chain, dir)
	}
	if dir == "" {
		dir = "/"
	}
	in.Dir = dir
	in.File = path.Join(dir, name)
	return in, nil
}

// RemoteFile resolves a file argument the way rm does: an absolute
// path is used as is, a relative one is taken under the plugin
// directory, and an empty one means defaultName there.
func RemoteFile(tid, name, defaultName string) (string, error) {
	if strings.HasPrefix(name, "/") {
		return name, nil
	}
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return "", &skyerr.PathError{Path: name, Message: "no file name"}
	}
	if tid == "" {
		return "", skyerr.ErrNoTitleID
	}
	return path.Join(PluginsPath(tid), name), nil
}

// CopyDestination resolves cp's destination for the local file src.
// "sd:/..." is absolute on the SD card; anything else is relative to
// the plugin directory.  A destination whose last segment differs from
// src's base name is treated as a directory.
func CopyDestination(tid, src, dest string) (string, error) {
	if strings.HasPrefix(dest, "/") {
		return "", &skyerr.PathError{Path: dest, Message: `absolute console paths must be written "sd:/..."`}
	}
	dest = strings.Replace(dest, sdPrefix, "/", 1)

	target, err := RemoteFile(tid, dest, ".")
	if err != nil {
		return "", err
	}

	base := path.Base(strings.ReplaceAll(src, "\\", "/"))
	if base == "." || base == "/" {
		return "", &skyerr.PathError{Path: src, Message: "source has no file name"}
	}
	if path.Base(target) != base {
		target = path.Join(target, base)
	}
	return target, nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
