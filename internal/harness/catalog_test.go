package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wheelwright/internal/wheel"
)

func TestCatalogNames(t *testing.T) {
	assert.Equal(t, []string{
		"numpy",
		"pure",
		"executable",
		"deps-linked",
		"deps-headers",
		"rpath",
	}, Names())
}

func TestCatalogFollowsPythonABI(t *testing.T) {
	scenarios, err := Catalog("cp36-cp36m")
	require.NoError(t, err)

	byName := map[string]Scenario{}
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}

	// Extension wheels carry the ABI; pure and py3 wheels do not.
	assert.Equal(t, "numpy-1.11.0-cp36-cp36m-linux_x86_64.whl", byName["numpy"].OriginalWheel)
	assert.Equal(t, "testdependencies-0.0.1-cp36-cp36m-linux_x86_64.whl", byName["deps-linked"].OriginalWheel)
	assert.Equal(t, "testrpath-0.0.1-cp36-cp36m-linux_x86_64.whl", byName["rpath"].OriginalWheel)
	assert.Equal(t, "six-1.11.0-py2.py3-none-any.whl", byName["pure"].OriginalWheel)
	assert.Equal(t, "testpackage-0.0.1-py3-none-any.whl", byName["executable"].OriginalWheel)
}

func TestCatalogRejectsMalformedABI(t *testing.T) {
	for _, abi := range []string{"", "cp35", "-cp35m", "cp35-"} {
		_, err := Catalog(abi)
		assert.Error(t, err, "abi %q", abi)
	}
}

func TestCatalogEntriesAreWellFormed(t *testing.T) {
	scenarios, err := Catalog("cp35-cp35m")
	require.NoError(t, err)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			require.NotEmpty(t, sc.Build)
			for _, cmd := range sc.Build {
				assert.NoError(t, cmd.Validate())
			}
			for _, v := range sc.Verify {
				assert.NotEmpty(t, v.Name)
				assert.NoError(t, v.Command.Validate())
			}

			// Every original wheel name must parse, and the repair
			// rendered from it must be a valid command.
			name, err := wheel.ParseName(sc.OriginalWheel)
			require.NoError(t, err)
			assert.Equal(t, sc.OriginalWheel, name.Filename())
			repair := repairCommand("auditwheel", sc, "manylinux1_x86_64", sc.OriginalWheel)
			assert.NoError(t, repair.Validate())
		})
	}
}

func TestCatalogScenarioShape(t *testing.T) {
	numpy, err := Lookup("cp35-cp35m", "numpy")
	require.NoError(t, err)
	assert.True(t, numpy.Cacheable)
	assert.Equal(t, []string{"atlas", "atlas-devel"}, numpy.YumPackages)
	assert.Len(t, numpy.Verify, 5)
	assert.Equal(t, "ok", numpy.Verify[0].Expect)

	pure, err := Lookup("cp35-cp35m", "pure")
	require.NoError(t, err)
	assert.True(t, pure.AddsNoFiles)
	assert.True(t, pure.ShowOldestTag)
	assert.Empty(t, pure.Verify)

	linked, err := Lookup("cp35-cp35m", "deps-linked")
	require.NoError(t, err)
	assert.True(t, linked.RejectionMatrix)
	assert.True(t, linked.RepairVerbose)
	assert.Equal(t, "1", linked.Build[0].Env["WITH_DEPENDENCY"])
	assert.Equal(t, OriginalShowsLinux, linked.ShowOriginal)

	headers, err := Lookup("cp35-cp35m", "deps-headers")
	require.NoError(t, err)
	assert.Equal(t, "0", headers.Build[0].Env["WITH_DEPENDENCY"])
	assert.Equal(t, OriginalShowsPolicy, headers.ShowOriginal)

	rpath, err := Lookup("cp35-cp35m", "rpath")
	require.NoError(t, err)
	assert.True(t, rpath.RPathChecks)
	assert.True(t, rpath.AllowExtraWheels)
	assert.NotEmpty(t, rpath.Build[0].Shell)
	assert.Empty(t, rpath.Build[0].Argv)
}

func TestLookupUnknownScenario(t *testing.T) {
	_, err := Lookup("cp35-cp35m", "tensorflow")
	require.Error(t, err)
	assert.Equal(t, `unknown scenario "tensorflow"`, err.Error())
}
