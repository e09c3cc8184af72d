package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/wheelwright/internal/docker"
)

// Fixture projects live in the tool checkout mounted at /auditwheel_src.
const fixtureRoot = "/auditwheel_src/tests/integration"

// OriginalShow says whether, and with which tag, the inspect stage runs
// show against the original wheel in addition to the repaired one.
type OriginalShow int

const (
	// SkipOriginalShow leaves the original wheel alone.
	SkipOriginalShow OriginalShow = iota
	// OriginalShowsLinux expects the plain linux_x86_64 tag: the wheel
	// was not compliant before the repair.
	OriginalShowsLinux
	// OriginalShowsPolicy expects the target policy's tag: the wheel was
	// already compliant as built.
	OriginalShowsPolicy
)

// Verification is one consumer-side command. Commands with an expected
// literal assert trimmed output equality; commands without only assert
// exit 0.
type Verification struct {
	Name    string
	Command docker.Command
	Expect  string
}

// Scenario is one compiled-in verification workflow. Scenarios are plain
// data interpreted by the driver; the repair and show commands are derived
// by the driver from these fields.
type Scenario struct {
	Name    string
	Summary string

	// YumPackages install into the producer before the build.
	YumPackages []string

	// Build commands must leave exactly OriginalWheel in /io.
	Build         []docker.Command
	OriginalWheel string

	// Cacheable builds do not exercise the tool under test, so their
	// output may be restored from the artifact cache.
	Cacheable bool

	// RepairVerbose adds the tool's -v flag to every repair invocation.
	RepairVerbose bool

	// RepairEnv is the environment overlay repair commands run with.
	RepairEnv map[string]string

	// RejectionMatrix first repairs against every policy older than the
	// producer's, expecting the tool to refuse each one.
	RejectionMatrix bool

	// AddsNoFiles marks an already-compliant wheel: repair must leave /io
	// unchanged and later stages act on the original file.
	AddsNoFiles bool

	// AllowExtraWheels accepts additional repaired artifacts next to the
	// expected one instead of requiring exactly one new file.
	AllowExtraWheels bool

	// ShowOldestTag means show must report the oldest configured
	// policy's tag for the repaired wheel instead of the target
	// policy's own, as it does for wheels whose contents satisfy
	// every policy no matter where they were built.
	ShowOldestTag bool

	// ShowExtra are additional sentences expected in the show output,
	// matched after flattening.
	ShowExtra []string

	// ShowOriginal optionally runs show against the original wheel.
	ShowOriginal OriginalShow

	// Verify runs in the consumer after installing the repaired wheel.
	// Empty means the scenario has no consumer stage.
	Verify []Verification

	// RPathChecks inspects the repaired wheel's grafted libraries on the
	// host: every testrpath/.libs/lib member must parse as ELF, and the
	// .libs/liba member must carry exactly one DT_RPATH of "$ORIGIN/.".
	RPathChecks bool
}

// Catalog returns the compiled-in scenarios for the given python ABI
// (e.g. "cp35-cp35m"). The ABI decides the python and abi tags compiled
// extension wheels carry; pure wheels are unaffected.
func Catalog(pythonABI string) ([]Scenario, error) {
	pyTag, abiTag, ok := strings.Cut(pythonABI, "-")
	if !ok || pyTag == "" || abiTag == "" {
		return nil, fmt.Errorf("python abi %q: want <pytag>-<abitag>", pythonABI)
	}
	ext := pyTag + "-" + abiTag

	return []Scenario{
		{
			Name:        "numpy",
			Summary:     "source-built numpy linking system BLAS and Fortran runtimes",
			YumPackages: []string{"atlas", "atlas-devel"},
			Build: []docker.Command{
				{Argv: []string{"pip", "wheel", "-w", "/io", "--no-binary=:all:", "numpy==1.11.0"}},
			},
			OriginalWheel: fmt.Sprintf("numpy-1.11.0-%s-linux_x86_64.whl", ext),
			Cacheable:     true,
			Verify: []Verification{
				{
					Name:    "quick check passes",
					Command: docker.Command{Argv: []string{"python", fixtureRoot + "/quick_check_numpy.py"}},
					Expect:  "ok",
				},
				{
					Name:    "refresh package index",
					Command: docker.Command{Argv: []string{"apt-get", "update", "-yqq"}},
				},
				{
					Name:    "install system gfortran",
					Command: docker.Command{Argv: []string{"apt-get", "install", "-y", "gfortran"}},
				},
				{
					Name:    "f2py builds against system gfortran",
					Command: docker.Command{Argv: []string{"python", "-m", "numpy.f2py", "-c", fixtureRoot + "/foo.f90", "-m", "foo"}},
				},
				{
					Name:    "grafted and system fortran runtimes coexist",
					Command: docker.Command{Argv: []string{"python", "-c", "import numpy; import foo"}},
				},
			},
		},
		{
			Name:    "pure",
			Summary: "pure-python wheel the repair must leave untouched",
			Build: []docker.Command{
				{Argv: []string{"pip", "wheel", "-w", "/io", "--no-binary=:all:", "six==1.11.0"}},
			},
			OriginalWheel: "six-1.11.0-py2.py3-none-any.whl",
			Cacheable:     true,
			AddsNoFiles:   true,
			ShowOldestTag: true,
			ShowExtra: []string{
				"The wheel references no external versioned symbols from system- provided shared libraries.",
				"The wheel requires no external shared libraries! :)",
			},
		},
		{
			Name:        "executable",
			Summary:     "wheel shipping a binary executable next to the python code",
			YumPackages: []string{"gsl-devel"},
			Build: []docker.Command{
				{
					Argv: []string{"python", "-m", "pip", "wheel", "--no-deps", "-w", "/io", "."},
					Dir:  fixtureRoot + "/testpackage",
				},
			},
			OriginalWheel: "testpackage-0.0.1-py3-none-any.whl",
			Verify: []Verification{
				{
					Name:    "bundled executable computes",
					Command: docker.Command{Argv: []string{"python", "-c", "from testpackage import runit; print(runit(1.5))"}},
					Expect:  "2.25",
				},
			},
		},
		{
			Name:    "deps-linked",
			Summary: "extension with a graftable dependency using image-level symbols",
			Build: []docker.Command{
				{
					Argv: []string{"python", "setup.py", "-v", "build_ext", "-f", "bdist_wheel", "-d", "/io"},
					Dir:  fixtureRoot + "/testdependencies",
					Env:  map[string]string{"WITH_DEPENDENCY": "1"},
				},
			},
			OriginalWheel:   fmt.Sprintf("testdependencies-0.0.1-%s-linux_x86_64.whl", ext),
			RepairVerbose:   true,
			RepairEnv:       map[string]string{"LD_LIBRARY_PATH": fixtureRoot + "/testdependencies"},
			RejectionMatrix: true,
			ShowOriginal:    OriginalShowsLinux,
			Verify: []Verification{
				{
					Name:    "module runs with grafted dependency",
					Command: docker.Command{Argv: []string{"python", "-c", "from sys import exit; from testdependencies import run; exit(run())"}},
				},
			},
		},
		{
			Name:    "deps-headers",
			Summary: "extension using image-level symbols directly, nothing to graft",
			Build: []docker.Command{
				{
					Argv: []string{"python", "setup.py", "-v", "build_ext", "-f", "bdist_wheel", "-d", "/io"},
					Dir:  fixtureRoot + "/testdependencies",
					Env:  map[string]string{"WITH_DEPENDENCY": "0"},
				},
			},
			OriginalWheel:   fmt.Sprintf("testdependencies-0.0.1-%s-linux_x86_64.whl", ext),
			RepairVerbose:   true,
			RepairEnv:       map[string]string{"LD_LIBRARY_PATH": fixtureRoot + "/testdependencies"},
			RejectionMatrix: true,
			ShowOriginal:    OriginalShowsPolicy,
			Verify: []Verification{
				{
					Name:    "module runs against system libraries",
					Command: docker.Command{Argv: []string{"python", "-c", "from sys import exit; from testdependencies import run; exit(run())"}},
				},
			},
		},
		{
			Name:    "rpath",
			Summary: "extension depending on a library resolved through RPATH",
			Build: []docker.Command{
				{
					Shell: "rm -rf build && python setup.py bdist_wheel -d /io",
					Dir:   fixtureRoot + "/testrpath",
				},
			},
			OriginalWheel:    fmt.Sprintf("testrpath-0.0.1-%s-linux_x86_64.whl", ext),
			RepairEnv:        map[string]string{"LD_LIBRARY_PATH": fixtureRoot + "/testrpath/a"},
			AllowExtraWheels: true,
			ShowOldestTag:    true,
			Verify: []Verification{
				{
					Name:    "extension resolves its rpath dependency",
					Command: docker.Command{Argv: []string{"python", "-c", "from testrpath import testrpath; print(testrpath.func())"}},
					Expect:  "11",
				},
			},
			RPathChecks: true,
		},
	}, nil
}

// Lookup returns the named scenario for the given python ABI.
func Lookup(pythonABI, name string) (Scenario, error) {
	scenarios, err := Catalog(pythonABI)
	if err != nil {
		return Scenario{}, err
	}
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", name)
}

// Names lists the catalog's scenario names in catalog order.
func Names() []string {
	// The ABI only affects wheel filenames, never the name set.
	scenarios, _ := Catalog("cp35-cp35m")
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
	}
	return names
}
