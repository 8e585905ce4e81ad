package update

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name string
		want Version
		ok   bool
	}{
		{"retina-node-v1.2.3", Version{1, 2, 3}, true},
		{"retina-node-v10.0.12", Version{10, 0, 12}, true},
		{"retina-node-v1.2.3-rc1", Version{}, false},
		{"retina-node-v1.2.3-dev", Version{}, false},
		{"retina-node-v1.2", Version{}, false},
		{"owl-os-pi5-v1.2.3", Version{}, false},
		{"v1.2.3", Version{}, false},
		{"", Version{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseVersion(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseVersion(%q) = %+v, %v; want %+v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestVersionLess(t *testing.T) {
	tests := []struct {
		a, b Version
		want bool
	}{
		{Version{1, 0, 0}, Version{2, 0, 0}, true},
		{Version{1, 9, 9}, Version{2, 0, 0}, true},
		{Version{1, 2, 3}, Version{1, 3, 0}, true},
		{Version{1, 2, 3}, Version{1, 2, 4}, true},
		{Version{1, 2, 3}, Version{1, 2, 3}, false},
		{Version{2, 0, 0}, Version{1, 9, 9}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFindLatestStable(t *testing.T) {
	artifacts := []Artifact{
		{ID: "a", Name: "retina-node-v1.2.3"},
		{ID: "b", Name: "retina-node-v1.10.0"},
		{ID: "c", Name: "retina-node-v1.10.0-rc2"},
		{ID: "d", Name: "retina-node-v1.9.9"},
		{ID: "e", Name: "something-else"},
	}
	best, ok := FindLatestStable(artifacts)
	if !ok {
		t.Fatal("no stable found")
	}
	if best.ID != "b" {
		t.Fatalf("best = %+v", best)
	}
}

func TestFindLatestStableNoneStable(t *testing.T) {
	artifacts := []Artifact{
		{ID: "a", Name: "retina-node-v1.0.0-beta"},
		{ID: "b", Name: "garbage"},
	}
	if _, ok := FindLatestStable(artifacts); ok {
		t.Fatal("prerelease offered as stable")
	}
	if _, ok := FindLatestStable(nil); ok {
		t.Fatal("empty list offered an artifact")
	}
}
