// Package prereq implements the Prerequisite Checker (C13): detecting the
// host package manager, probing for the host tools the installation
// pipeline needs, and — on Windows — bootstrapping missing tools through
// the user-level package manager.
package prereq

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/idftools/eim/internal/execrun"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/platform"
)

// requiredTools lists the host binaries the pipeline needs, per OS.
var requiredTools = map[string][]string{
	"linux":   {"git", "cmake", "ninja"},
	"darwin":  {"git", "cmake", "ninja"},
	"windows": {"git", "cmake", "ninja", "python"},
}

// devLibPackages lists the development packages the framework's build
// needs, per package-manager family. These are checked through the
// package manager's installed-package list because they ship no binary
// to probe.
var devLibPackages = map[string][]string{
	"apt":    {"libusb-1.0-0", "libffi-dev", "libssl-dev", "dfu-util"},
	"dnf":    {"libusbx", "libffi-devel", "openssl-devel", "dfu-util"},
	"pacman": {"libusb", "libffi", "openssl", "dfu-util"},
	"apk":    {"libusb", "libffi-dev", "openssl-dev", "dfu-util"},
	"zypper": {"libusb-1_0-0", "libffi-devel", "libopenssl-devel", "dfu-util"},
	"brew":   {"libusb", "dfu-util"},
}

// familyToManager maps a detected linux family to its package manager
// command.
var familyToManager = map[string]string{
	"debian": "apt",
	"rhel":   "dnf",
	"arch":   "pacman",
	"alpine": "apk",
	"suse":   "zypper",
}

// Checker probes the host for required tools and packages.
type Checker struct {
	Runner *execrun.Runner
	Logger log.Logger

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
}

// New returns a Checker on the default Runner.
func New() *Checker {
	return &Checker{Runner: execrun.Default(), Logger: log.Default(), lookPath: exec.LookPath}
}

// PackageManager identifies the host package manager by probing one
// command per candidate. Returns "" when none is found.
func (c *Checker) PackageManager() string {
	look := c.lookPath
	if look == nil {
		look = exec.LookPath
	}
	switch runtime.GOOS {
	case "windows":
		if _, err := look("scoop"); err == nil {
			return "scoop"
		}
		return ""
	case "darwin":
		if _, err := look("brew"); err == nil {
			return "brew"
		}
		return ""
	default:
		family, err := platform.DetectFamily()
		if err == nil && family != "" {
			if mgr, ok := familyToManager[family]; ok {
				if _, lookErr := look(mgr); lookErr == nil {
					return mgr
				}
			}
		}
		// Fall back to probing every known manager command.
		for _, mgr := range []string{"apt", "dnf", "pacman", "apk", "zypper"} {
			if _, err := look(mgr); err == nil {
				return mgr
			}
		}
		return ""
	}
}

// Check returns the names of unsatisfied required tools and dev-lib
// packages. An empty result means every prerequisite is present.
func (c *Checker) Check(ctx context.Context) []string {
	var missing []string

	for _, tool := range requiredTools[runtime.GOOS] {
		if !c.toolPresent(ctx, tool) {
			missing = append(missing, tool)
		}
	}

	if runtime.GOOS != "windows" {
		mgr := c.PackageManager()
		for _, pkg := range devLibPackages[mgr] {
			if !c.packageInstalled(ctx, mgr, pkg) {
				missing = append(missing, pkg)
			}
		}
	}
	return missing
}

// toolPresent tries a direct version probe first, then queries the
// package manager's installed-package list.
func (c *Checker) toolPresent(ctx context.Context, tool string) bool {
	look := c.lookPath
	if look == nil {
		look = exec.LookPath
	}
	if _, err := look(tool); err == nil {
		res, runErr := c.Runner.Run(ctx, tool, []string{"--version"})
		if runErr == nil && res.ExitCode == 0 {
			return true
		}
	}
	return c.packageInstalled(ctx, c.PackageManager(), tool)
}

// packageInstalled queries the package manager's installed-package list
// for pkg.
func (c *Checker) packageInstalled(ctx context.Context, mgr, pkg string) bool {
	var argv []string
	switch mgr {
	case "apt":
		argv = []string{"dpkg", "-s", pkg}
	case "dnf":
		argv = []string{"rpm", "-q", pkg}
	case "pacman":
		argv = []string{"pacman", "-Qi", pkg}
	case "apk":
		argv = []string{"apk", "info", "-e", pkg}
	case "zypper":
		argv = []string{"rpm", "-q", pkg}
	case "brew":
		argv = []string{"brew", "list", pkg}
	case "scoop":
		argv = []string{"scoop", "list", pkg}
	default:
		return false
	}
	res, err := c.Runner.Run(ctx, argv[0], argv[1:])
	return err == nil && res.ExitCode == 0
}

// Report is one line of the doctor diagnostic: a probe name and whether
// it is satisfied.
type Report struct {
	Name      string
	Satisfied bool
}

// Doctor runs the same probes as Check but reports every prerequisite's
// status instead of only the failures. It never installs anything.
func (c *Checker) Doctor(ctx context.Context) []Report {
	var out []Report
	for _, tool := range requiredTools[runtime.GOOS] {
		out = append(out, Report{Name: tool, Satisfied: c.toolPresent(ctx, tool)})
	}
	if runtime.GOOS != "windows" {
		mgr := c.PackageManager()
		for _, pkg := range devLibPackages[mgr] {
			out = append(out, Report{Name: pkg, Satisfied: c.packageInstalled(ctx, mgr, pkg)})
		}
	}
	return out
}
