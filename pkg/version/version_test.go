package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		major uint16
		minor uint16
	}{
		{"1.0", 1, 0},
		{"1.1", 1, 1},
		{"2.0", 2, 0},
		{"10.23", 10, 23},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v.Major != tt.major {
				t.Errorf("Major = %d, want %d", v.Major, tt.major)
			}
			if v.Minor != tt.minor {
				t.Errorf("Minor = %d, want %d", v.Minor, tt.minor)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"abc",
		"1.0.0",
		"1.x",
		"-1.0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestString(t *testing.T) {
	v := Version{Major: 1, Minor: 2}
	if got := v.String(); got != "1.2" {
		t.Errorf("String() = %q, want %q", got, "1.2")
	}
}

func TestCompatible(t *testing.T) {
	v10, _ := Parse("1.0")
	v11, _ := Parse("1.1")
	v20, _ := Parse("2.0")

	if !v10.Compatible(v11) {
		t.Error("1.0 should be compatible with 1.1")
	}
	if v10.Compatible(v20) {
		t.Error("1.0 should not be compatible with 2.0")
	}
}

func TestCurrentParses(t *testing.T) {
	if _, err := Parse(Current); err != nil {
		t.Fatalf("Current %q does not parse: %v", Current, err)
	}
	if _, err := Parse(LogFormat); err != nil {
		t.Fatalf("LogFormat %q does not parse: %v", LogFormat, err)
	}
}
