// Package gate decides whether programs should be built with cache
// instrumentation and produces the compiler and linker flags to do so.
package gate

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variables read by the gate.
const (
	EnableVar = "CACHE_EXPLORER"
	PathVar   = "CACHE_EXPLORER_PATH"
)

// Paths of the build artifacts, relative to the installation root.
const (
	PassArtifact    = "llvm-pass/build/CacheProfiler.so"
	RuntimeArtifact = "runtime/build/libcache-explorer-rt.a"
)

// FallbackRoots are searched, in order, when PathVar is unset. A leading
// "~" stands for the home directory.
var FallbackRoots = []string{
	"/usr/local/share/cache-explorer",
	"/opt/cache-explorer",
	"~/.cache-explorer",
}

// Activation is the outcome of a gate check.
type Activation struct {
	Enabled     bool   `json:"enabled"`
	Root        string `json:"root,omitempty"`
	PassPath    string `json:"passPath,omitempty"`
	RuntimePath string `json:"runtimePath,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// CompilerFlags returns the flags that load the instrumentation pass.
func (a Activation) CompilerFlags() []string {
	if !a.Enabled {
		return nil
	}

	return []string{"-fpass-plugin=" + a.PassPath, "-g"}
}

// LinkerFlags returns the flags that link the recording runtime.
func (a Activation) LinkerFlags() []string {
	if !a.Enabled {
		return nil
	}

	return []string{a.RuntimePath, "-lpthread"}
}

// A Gate checks the environment and the file system for an installation.
type Gate struct {
	log    logrus.FieldLogger
	getenv func(string) string
	exists func(string) bool
	home   func() (string, error)
}

// New creates a gate that inspects the process environment.
func New(log logrus.FieldLogger) *Gate {
	return &Gate{
		log:    log,
		getenv: os.Getenv,
		exists: fileExists,
		home:   os.UserHomeDir,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadEnv loads variables from .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadEnv(log logrus.FieldLogger, files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			log.WithError(err).WithField("file", f).Warn("cannot load env file")
		}
	}
}

// Detect checks whether instrumentation is requested and available. A
// missing installation disables the gate with a warning; it is never an
// error.
func (g *Gate) Detect() Activation {
	if g.getenv(EnableVar) != "1" {
		return Activation{Reason: EnableVar + " is not set to 1"}
	}

	for _, root := range g.candidateRoots() {
		pass := filepath.Join(root, PassArtifact)
		runtime := filepath.Join(root, RuntimeArtifact)

		if g.exists(pass) && g.exists(runtime) {
			g.log.WithField("root", root).Debug("instrumentation found")

			return Activation{
				Enabled:     true,
				Root:        root,
				PassPath:    pass,
				RuntimePath: runtime,
			}
		}

		g.log.WithField("root", root).
			Debug("instrumentation artifacts missing")
	}

	a := Activation{Reason: "instrumentation artifacts not found"}

	if root := g.getenv(PathVar); root != "" {
		a.Root = root
		a.Reason = "instrumentation artifacts not found under " + root
	}

	g.log.WithFields(logrus.Fields{
		"pass":    PassArtifact,
		"runtime": RuntimeArtifact,
	}).Warn(a.Reason + ", building without instrumentation")

	return a
}

func (g *Gate) candidateRoots() []string {
	if root := g.getenv(PathVar); root != "" {
		return []string{root}
	}

	roots := make([]string, 0, len(FallbackRoots))

	for _, root := range FallbackRoots {
		if len(root) > 0 && root[0] == '~' {
			home, err := g.home()
			if err != nil {
				continue
			}

			root = filepath.Join(home, root[1:])
		}

		roots = append(roots, root)
	}

	return roots
}
