package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Name
	}{
		{
			name:     "cpython extension wheel",
			filename: "numpy-1.11.0-cp35-cp35m-linux_x86_64.whl",
			want: Name{
				Distribution: "numpy",
				Version:      "1.11.0",
				PythonTag:    "cp35",
				ABITag:       "cp35m",
				PlatformTag:  "linux_x86_64",
			},
		},
		{
			name:     "pure wheel with compressed python tag",
			filename: "six-1.11.0-py2.py3-none-any.whl",
			want: Name{
				Distribution: "six",
				Version:      "1.11.0",
				PythonTag:    "py2.py3",
				ABITag:       "none",
				PlatformTag:  "any",
			},
		},
		{
			name:     "policy tagged wheel",
			filename: "testpackage-0.0.1-py3-none-manylinux2010_x86_64.whl",
			want: Name{
				Distribution: "testpackage",
				Version:      "0.0.1",
				PythonTag:    "py3",
				ABITag:       "none",
				PlatformTag:  "manylinux2010_x86_64",
			},
		},
		{
			name:     "dashed distribution",
			filename: "my-dist-1.0-py3-none-any.whl",
			want: Name{
				Distribution: "my-dist",
				Version:      "1.0",
				PythonTag:    "py3",
				ABITag:       "none",
				PlatformTag:  "any",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseName(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.filename, got.Filename(), "parse then render should round-trip")
		})
	}
}

func TestParseNameErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"missing suffix", "numpy-1.11.0-cp35-cp35m-linux_x86_64"},
		{"too few fields", "numpy-1.11.0-cp35.whl"},
		{"empty field", "numpy--cp35-cp35m-linux_x86_64.whl"},
		{"empty name", ".whl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseName(tt.filename)
			assert.Error(t, err)
		})
	}
}

func TestWithPlatform(t *testing.T) {
	orig, err := ParseName("numpy-1.11.0-cp35-cp35m-linux_x86_64.whl")
	require.NoError(t, err)

	repaired := orig.WithPlatform("manylinux1_x86_64")
	assert.Equal(t, "numpy-1.11.0-cp35-cp35m-manylinux1_x86_64.whl", repaired.Filename())
	assert.Equal(t, "linux_x86_64", orig.PlatformTag, "original must be unchanged")
	assert.Equal(t, orig.Distribution, repaired.Distribution)
	assert.Equal(t, orig.Version, repaired.Version)
	assert.Equal(t, orig.PythonTag, repaired.PythonTag)
	assert.Equal(t, orig.ABITag, repaired.ABITag)
}

func TestTagged(t *testing.T) {
	n, err := ParseName("testrpath-0.0.1-cp35-cp35m-manylinux1_x86_64.whl")
	require.NoError(t, err)
	assert.True(t, n.Tagged("manylinux1"))
	assert.False(t, n.Tagged("manylinux2010"))

	plain, err := ParseName("testrpath-0.0.1-cp35-cp35m-linux_x86_64.whl")
	require.NoError(t, err)
	assert.False(t, plain.Tagged("manylinux1"))
}
