package classfile

import (
	"strings"

	"golang.org/x/mod/semver"
)

// ModuleRequire is one requires entry of a class's Module attribute
// (JVMS §4.7.25).
type ModuleRequire struct {
	Name    string
	Flags   uint16
	Version string
	// NormalizedVersion is Version coerced to a "vMAJOR.MINOR.PATCH" string
	// that golang.org/x/mod/semver accepts, best-effort ([NEW]: JVM module
	// versions are free-form strings, not semver, so this is informational
	// only and empty when no reasonable coercion exists).
	NormalizedVersion string
}

// ModuleInfo is a decoded Module attribute.
type ModuleInfo struct {
	Name, Version     string
	NormalizedVersion string
	Flags             uint16
	Requires          []ModuleRequire
}

// normalizeModuleVersion best-effort-coerces a JVM module version string
// (e.g. "11.0.2", "1.8", "3") into a semver.IsValid-accepting form, so
// that golang.org/x/mod/semver.Compare can order them for diagnostics.
// Versions that still don't parse return "".
func normalizeModuleVersion(v string) string {
	if v == "" {
		return ""
	}
	core := v
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core = v[:i]
	}
	parts := strings.Split(core, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	candidate := "v" + strings.Join(parts[:3], ".")
	if !semver.IsValid(candidate) {
		return ""
	}
	return candidate
}

// DecodeModule decodes a class's Module attribute, if present.
func DecodeModule(attrs []RawAttribute, cp *Pool) (*ModuleInfo, error) {
	raw := find(attrs, "Module")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	moduleIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	moduleEntry, err := cp.Get(moduleIdx)
	if err != nil {
		return nil, err
	}
	flags, err := r.u2()
	if err != nil {
		return nil, err
	}
	versionIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	var version string
	if versionIdx != 0 {
		version, err = cp.UTF8At(versionIdx)
		if err != nil {
			return nil, err
		}
	}
	requireCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	requires := make([]ModuleRequire, 0, requireCount)
	for i := 0; i < int(requireCount); i++ {
		reqIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		reqFlags, err := r.u2()
		if err != nil {
			return nil, err
		}
		reqVersionIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		reqEntry, err := cp.Get(reqIdx)
		if err != nil {
			return nil, err
		}
		var reqVersion string
		if reqVersionIdx != 0 {
			reqVersion, err = cp.UTF8At(reqVersionIdx)
			if err != nil {
				return nil, err
			}
		}
		requires = append(requires, ModuleRequire{
			Name: reqEntry.Name, Flags: reqFlags, Version: reqVersion,
			NormalizedVersion: normalizeModuleVersion(reqVersion),
		})
	}
	// exports/opens/uses/provides follow in the attribute but carry no
	// information this compiler needs (there is no module-path resolution
	// component); they are left unread, which is safe because Code only
	// ever consumes RawAttribute.Data as a whole slice elsewhere.
	return &ModuleInfo{
		Name: moduleEntry.Name, Version: version,
		NormalizedVersion: normalizeModuleVersion(version),
		Flags:             flags, Requires: requires,
	}, nil
}
