package python

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// ErrInvalidVersion is returned by ParseVersion for unrecognised input.
var ErrInvalidVersion = errors.New("invalid python version")

// EnvironmentType names the tool that created an environment.
type EnvironmentType string

const (
	EnvUnknown EnvironmentType = "Unknown"
	EnvSystem  EnvironmentType = "System"
	EnvVenv    EnvironmentType = "Venv"
	EnvConda   EnvironmentType = "Conda"
	EnvPyenv   EnvironmentType = "Pyenv"
	EnvPoetry  EnvironmentType = "Poetry"
	EnvPipenv  EnvironmentType = "Pipenv"
)

// Architecture is the interpreter's pointer width.
type Architecture int

const (
	ArchUnknown Architecture = iota
	ArchX86
	ArchX64
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX64:
		return "x64"
	default:
		return "unknown"
	}
}

// InterpreterInformation is the metadata reported for an interpreter.
type InterpreterInformation struct {
	Path         string
	Version      *semver.Version
	SysVersion   string
	SysPrefix    string
	Architecture Architecture
}

// Environment describes one discovered interpreter. Services treat it as
// immutable.
type Environment struct {
	Path         string
	Version      *semver.Version
	SysVersion   string
	SysPrefix    string
	Architecture Architecture
	EnvType      EnvironmentType
	EnvName      string
	EnvPath      string
}

// Information returns the interpreter metadata of e.
func (e Environment) Information() InterpreterInformation {
	return InterpreterInformation{
		Path:         e.Path,
		Version:      copyVersion(e.Version),
		SysVersion:   e.SysVersion,
		SysPrefix:    e.SysPrefix,
		Architecture: e.Architecture,
	}
}

func copyVersion(v *semver.Version) *semver.Version {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var versionPattern = regexp.MustCompile(
	`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:[.-]?(alpha|beta|candidate|final|rc|a|b|c)\.?(\d+)?)?`)

// ParseVersion parses the version strings interpreters report, such as
// "3.10.0", "Python 3.10.0", "3.10.0.final.0", "3.10" or "3.12.0rc1".
func ParseVersion(raw string) (*semver.Version, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Python"))

	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}

	minor, patch := m[2], m[3]
	if minor == "" {
		minor = "0"
	}
	if patch == "" {
		patch = "0"
	}
	normalized := m[1] + "." + minor + "." + patch
	if level := releaseLevel(m[4]); level != "" {
		serial := m[5]
		if serial == "" {
			serial = "0"
		}
		normalized += "-" + level + serial
	}

	v, err := semver.NewVersion(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, raw, err)
	}
	return v, nil
}

// releaseLevel maps sys.version_info release levels onto short pre-release
// tags. "final" has none.
func releaseLevel(level string) string {
	switch level {
	case "a", "alpha":
		return "a"
	case "b", "beta":
		return "b"
	case "c", "rc", "candidate":
		return "rc"
	default:
		return ""
	}
}
