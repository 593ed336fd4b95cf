package main

import (
	"testing"
)

// ---------- validateSpeedOverride ----------

func TestValidateSpeedOverride_ZeroMeansDefault(t *testing.T) {
	if err := validateSpeedOverride(0, 255); err != nil {
		t.Errorf("zero should be valid (use config default), got: %v", err)
	}
}

func TestValidateSpeedOverride_Valid(t *testing.T) {
	cases := []struct {
		name  string
		speed int
		max   int
	}{
		{"min", 1, 255},
		{"max", 255, 255},
		{"mid", 100, 255},
		{"small_max", 10, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateSpeedOverride(tc.speed, tc.max); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateSpeedOverride_OutOfRange(t *testing.T) {
	cases := []struct {
		name  string
		speed int
		max   int
	}{
		{"negative", -1, 255},
		{"above_max", 256, 255},
		{"way_above", 1000, 255},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateSpeedOverride(tc.speed, tc.max); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyUsesDefault(t *testing.T) {
	f := &webPortFlag{defaultPort: 8080}
	if err := f.Set(""); err != nil {
		t.Fatalf("Set(\"\"): %v", err)
	}
	if f.port() != 8080 {
		t.Errorf("port = %d, want 8080", f.port())
	}
}

func TestWebPortFlag_CustomPort(t *testing.T) {
	f := &webPortFlag{defaultPort: 8080}
	if err := f.Set("8980"); err != nil {
		t.Fatalf("Set(\"8980\"): %v", err)
	}
	if f.port() != 8980 {
		t.Errorf("port = %d, want 8980", f.port())
	}
}

func TestWebPortFlag_Invalid(t *testing.T) {
	cases := []string{"0", "-1", "65536", "abc"}
	for _, s := range cases {
		f := &webPortFlag{defaultPort: 8080}
		if err := f.Set(s); err == nil {
			t.Errorf("Set(%q): expected error, got nil", s)
		}
	}
}

func TestWebPortFlag_String(t *testing.T) {
	f := &webPortFlag{defaultPort: 8080}
	if got := f.String(); got != "0" {
		t.Errorf("unset String() = %q, want \"0\"", got)
	}
	f.Set("9000")
	if got := f.String(); got != "9000" {
		t.Errorf("String() = %q, want \"9000\"", got)
	}
}
