package nuspec

import (
	"reflect"
	"testing"
)

func TestReferences(t *testing.T) {
	m := &Manifest{ID: "Npgsql", Version: "4.1.3"}
	if got := m.References("npgsql"); !reflect.DeepEqual(got, []string{"npgsql.dll"}) {
		t.Errorf("synthetic reference = %v", got)
	}

	m.ReferenceFiles = []string{"A.dll", "B.dll"}
	if got := m.References("npgsql"); !reflect.DeepEqual(got, []string{"A.dll", "B.dll"}) {
		t.Errorf("declared references = %v", got)
	}
}

func TestRetainedDependencies(t *testing.T) {
	m := &Manifest{
		ID:      "Root",
		Version: "1.0.0",
		DependencyGroups: []DependencyGroup{
			{TargetFramework: ".NETStandard2.0", Dependencies: []Dependency{
				{ID: "OnlyInStandard", Version: "1.0.0"},
			}},
			{TargetFramework: ".NETCoreApp3.1", Dependencies: []Dependency{
				{ID: "System.Memory", Version: "4.5.3"},
				{ID: "NETStandard.Library", Version: "2.0.3"},
				{ID: "Microsoft.NETCore.App", Version: "3.1.0"},
				{ID: "Keep.Me", Version: "1.0.0"},
			}},
			{TargetFramework: "", Dependencies: []Dependency{
				{ID: "keep.me", Version: "9.9.9"},
				{ID: "Also.Kept", Version: "[2.0.0, )"},
			}},
		},
	}

	got := m.RetainedDependencies()
	want := []Dependency{
		{ID: "Keep.Me", Version: "1.0.0"},
		{ID: "Also.Kept", Version: "[2.0.0, )"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RetainedDependencies() = %+v, want %+v", got, want)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"System.Text.Json", true},
		{"NETStandard.Library", true},
		{"Microsoft.NETCore.App", true},
		{"Microsoft.Extensions.Logging", false},
		{"Systemic", false},
		{"Npgsql", false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.id); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestPinnedVersion(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"4.5.0", "4.5.0"},
		{" 4.5.0 ", "4.5.0"},
		{"[4.5.0, )", "4.5.0"},
		{"[4.5.0,5.0.0)", "4.5.0"},
		{"[4.5.0]", "4.5.0"},
		{"(4.5.0, )", ""},
		{"(, 5.0.0]", ""},
		{"[, 5.0.0]", ""},
		{"1.0.0-beta", "1.0.0-beta"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := PinnedVersion(tt.raw); got != tt.want {
				t.Errorf("PinnedVersion(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
