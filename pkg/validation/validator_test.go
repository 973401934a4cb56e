package validation

import (
	"testing"
)

func TestPasswordOK(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "Secret123", true},
		{"minimum length", "abcdefg", true},
		{"too short", "abc123", false},
		{"contains password", "mypassword1", false},
		{"contains password mixed case", "MyPaSsWoRd1", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PasswordOK(tc.in); got != tc.want {
				t.Fatalf("PasswordOK(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
