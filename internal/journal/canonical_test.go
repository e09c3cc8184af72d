package journal

import (
	"testing"

	"github.com/roach88/wheelwright/internal/docker"
)

func TestMarshalDetailSortsKeys(t *testing.T) {
	detail := Detail{
		"repaired": "six-1.11.0-py2.py3-none-any.whl",
		"original": "six-1.11.0-py2.py3-none-any.whl",
		"added":    "0",
	}

	got, err := MarshalDetail(detail)
	if err != nil {
		t.Fatalf("MarshalDetail() failed: %v", err)
	}
	want := `{"added":"0","original":"six-1.11.0-py2.py3-none-any.whl","repaired":"six-1.11.0-py2.py3-none-any.whl"}`
	if string(got) != want {
		t.Errorf("MarshalDetail() = %s, want %s", got, want)
	}
}

func TestMarshalDetailEmpty(t *testing.T) {
	for _, detail := range []Detail{nil, {}} {
		got, err := MarshalDetail(detail)
		if err != nil {
			t.Fatalf("MarshalDetail(%v) failed: %v", detail, err)
		}
		if string(got) != "{}" {
			t.Errorf("MarshalDetail(%v) = %s, want {}", detail, got)
		}
	}
}

func TestMarshalDetailNFCNormalization(t *testing.T) {
	// U+00E9 precomposed vs U+0065 U+0301 decomposed; both normalize to
	// the precomposed form, so the two spellings serialize identically.
	precomposed := Detail{"wheel": "café-1.0.whl"}
	decomposed := Detail{"wheel": "café-1.0.whl"}

	a, err := MarshalDetail(precomposed)
	if err != nil {
		t.Fatalf("MarshalDetail(precomposed) failed: %v", err)
	}
	b, err := MarshalDetail(decomposed)
	if err != nil {
		t.Fatalf("MarshalDetail(decomposed) failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("normalized forms differ: %s vs %s", a, b)
	}
}

func TestMarshalDetailNoHTMLEscaping(t *testing.T) {
	got, err := MarshalDetail(Detail{"show": "requires no external shared libraries! :)   <none>"})
	if err != nil {
		t.Fatalf("MarshalDetail() failed: %v", err)
	}
	want := `{"show":"requires no external shared libraries! :)   <none>"}`
	if string(got) != want {
		t.Errorf("MarshalDetail() = %s, want %s", got, want)
	}
}

func TestMarshalCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  docker.Command
		want string
	}{
		{
			name: "argv only",
			cmd:  docker.Command{Argv: []string{"auditwheel", "show", "/io/six-1.11.0-py2.py3-none-any.whl"}},
			want: `{"argv":["auditwheel","show","/io/six-1.11.0-py2.py3-none-any.whl"]}`,
		},
		{
			name: "shell with dir",
			cmd:  docker.Command{Shell: "python setup.py bdist_wheel -d /io", Dir: "/auditwheel_src/tests/integration/testdependencies"},
			want: `{"dir":"/auditwheel_src/tests/integration/testdependencies","shell":"python setup.py bdist_wheel -d /io"}`,
		},
		{
			name: "env overlay sorted",
			cmd: docker.Command{
				Argv: []string{"python", "-c", "from testdependencies import run; run()"},
				Env:  map[string]string{"WITH_DEPENDENCY": "1", "LD_LIBRARY_PATH": "/usr/local/lib"},
			},
			want: `{"argv":["python","-c","from testdependencies import run; run()"],"env":{"LD_LIBRARY_PATH":"/usr/local/lib","WITH_DEPENDENCY":"1"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCommand(tt.cmd)
			if err != nil {
				t.Fatalf("MarshalCommand() failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalCommand() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetailRoundTrip(t *testing.T) {
	detail := Detail{
		"original": "numpy-1.11.0-cp35-cp35m-linux_x86_64.whl",
		"tag":      "manylinux1_x86_64",
	}

	data, err := MarshalDetail(detail)
	if err != nil {
		t.Fatalf("MarshalDetail() failed: %v", err)
	}
	back, err := UnmarshalDetail(data)
	if err != nil {
		t.Fatalf("UnmarshalDetail() failed: %v", err)
	}
	if len(back) != len(detail) {
		t.Fatalf("round trip lost keys: %v", back)
	}
	for k, v := range detail {
		if back[k] != v {
			t.Errorf("back[%q] = %q, want %q", k, back[k], v)
		}
	}
}

func TestUnmarshalDetailRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalDetail([]byte("not json")); err == nil {
		t.Error("UnmarshalDetail() accepted garbage")
	}
}
