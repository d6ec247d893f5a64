package tap

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"tap0", false},
		{"eth-link0", false},
		{strings.Repeat("a", MaxNameLen-1), false},
		{"", true},
		{strings.Repeat("a", MaxNameLen), true},
		{"tap/0", true},
		{"tap 0", true},
		{"tap\t0", true},
		{"tap\n0", true},
		{"tap\r0", true},
		{"tap\v0", true},
		{"tap\f0", true},
		{"tap\x000", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validateName(c.name)
			if c.wantErr && err == nil {
				t.Fatalf("validateName(%q) = nil, want an error", c.name)
			}
			if !c.wantErr && err != nil {
				t.Fatalf("validateName(%q) = %v, want nil", c.name, err)
			}
			if c.wantErr && !errors.Is(err, ErrInvalidName) {
				t.Fatalf("validateName(%q) error = %v, want ErrInvalidName", c.name, err)
			}
		})
	}
}
