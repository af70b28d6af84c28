package perm

import "testing"

func TestPolicy_Allows(t *testing.T) {
	p := NewPolicy("ui", "http://127.0.0.1:7788/")

	cases := []struct {
		sender string
		want   bool
	}{
		{sender: "ui", want: true},
		{sender: " UI ", want: true},
		{sender: "http://127.0.0.1:7788", want: true},
		{sender: "HTTP://127.0.0.1:7788/", want: true},
		{sender: "http://evil.example", want: false},
		{sender: "", want: false},
		{sender: "mcp", want: false},
	}
	for _, tc := range cases {
		if got := p.Allows(tc.sender); got != tc.want {
			t.Fatalf("Allows(%q) = %v; want %v", tc.sender, got, tc.want)
		}
	}
}

func TestPolicy_EmptyTrustsNobody(t *testing.T) {
	var p Policy
	if p.Allows("ui") {
		t.Fatalf("zero policy must not trust any sender")
	}
}
