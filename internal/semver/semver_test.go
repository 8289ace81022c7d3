package semver

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "1.2.9", want: Version{Major: 1, Minor: 2, Patch: 9}},
		{in: "0.0.1", want: Floor},
		{
			in:   "1.2.10-rc.42+abc1234",
			want: Version{Major: 1, Minor: 2, Patch: 10, Prerelease: []string{"rc", "42"}, Build: []string{"abc1234"}},
		},
		{
			in:   "0.0.1-build.234+featurex.ababab",
			want: Version{Major: 0, Minor: 0, Patch: 1, Prerelease: []string{"build", "234"}, Build: []string{"featurex", "ababab"}},
		},
		{in: NoTagSentinel, want: Version{Major: 0, Minor: 0, Patch: 1, Prerelease: []string{"0-0"}}},
		{in: "v1.2", wantErr: true},
		{in: "v1.2.3", wantErr: true},
		{in: "1.2", wantErr: true},
		{in: "01.2.3", wantErr: true},
		{in: "1.2.3-", wantErr: true},
		{in: "1.2.3+", wantErr: true},
		{in: "1.2.3-01", wantErr: true},
		{in: "1.2.3-rc..1", wantErr: true},
		{in: "my-new-tag", wantErr: true},
		{in: "", wantErr: true},
		{in: "1.2.3+" + strings.Repeat("a", MaxLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	inputs := []string{
		"0.0.1",
		"1.2.10",
		"1.2.10-rc.42+abc1234",
		"0.0.1-build.234+featurex.ababab",
		"10.20.30-alpha.1.beta-2+exp.sha.5114f85",
		NoTagSentinel,
	}

	for _, in := range inputs {
		v, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", in, err)
		}
		if got := v.String(); got != in {
			t.Errorf("String() = %q, want %q", got, in)
		}
		again, err := Parse(v.String())
		if err != nil {
			t.Fatalf("re-Parse(%q) error = %v", v.String(), err)
		}
		if !again.Equal(v) {
			t.Errorf("re-Parse(%q) = %#v, want %#v", v.String(), again, v)
		}
	}
}

func TestCompare(t *testing.T) {
	// Each entry has strictly lower precedence than the next.
	ordered := []string{
		NoTagSentinel,
		"0.0.1-build.2+zzz",
		"0.0.1-build.10",
		"0.0.1-rc.1",
		"0.0.1",
		"1.0.0-alpha",
		"1.0.0-alpha.1",
		"1.0.0-alpha.beta",
		"1.0.0-beta",
		"1.0.0-beta.2",
		"1.0.0-beta.11",
		"1.0.0-rc.1",
		"1.0.0",
		"1.2.9",
		"1.2.10",
	}

	for i := 0; i < len(ordered)-1; i++ {
		lo := MustParse(ordered[i])
		hi := MustParse(ordered[i+1])
		if !lo.LessThan(hi) {
			t.Errorf("%s < %s = false, want true", lo, hi)
		}
		if hi.Compare(lo) != 1 {
			t.Errorf("%s.Compare(%s) = %d, want 1", hi, lo, hi.Compare(lo))
		}
	}
}

func TestCompareIgnoresBuild(t *testing.T) {
	a := MustParse("1.2.3-rc.1+aaa")
	b := MustParse("1.2.3-rc.1+bbb")
	if a.Compare(b) != 0 {
		t.Errorf("Compare() = %d, want 0", a.Compare(b))
	}
	if a.Equal(b) {
		t.Error("Equal() = true, want false for differing build metadata")
	}
}

func TestBumpPatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.2.9", "1.2.10"},
		{"0.0.1", "0.0.2"},
		{"1.2.3-build.123+feature.abc123", "1.2.4"},
		{"2.0.0-rc.1+def456", "2.0.1"},
		{"1.2.999", "1.2.1000"},
	}

	for _, tt := range tests {
		if got := MustParse(tt.in).BumpPatch().String(); got != tt.want {
			t.Errorf("BumpPatch(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestWithPrereleaseAndBuild(t *testing.T) {
	v := MustParse("1.2.10").WithPrerelease("rc", "042").WithBuild("feature/x", "", "abc1234")
	if got, want := v.String(), "1.2.10-rc.42+featurex.abc1234"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if err := v.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	base := MustParse("1.2.10")
	_ = base.WithPrerelease("rc")
	if len(base.Prerelease) != 0 {
		t.Errorf("WithPrerelease mutated receiver: %v", base.Prerelease)
	}
}

func TestValidateRejectsHandBuiltGarbage(t *testing.T) {
	v := Version{Major: 1, Prerelease: []string{"bad id"}}
	if err := v.Validate(); err == nil {
		t.Error("Validate() error = nil, want error")
	}
}

func TestIsNoTagSentinel(t *testing.T) {
	if !MustParse(NoTagSentinel).IsNoTagSentinel() {
		t.Error("IsNoTagSentinel() = false for sentinel")
	}
	if MustParse("0.0.1").IsNoTagSentinel() {
		t.Error("IsNoTagSentinel() = true for 0.0.1")
	}
}
