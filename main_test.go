package main

import "testing"

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://app:secret@db:5432/rechnung", "postgres://***@db:5432/rechnung"},
		{"sqlite://rechnung.db", "sqlite://rechnung.db"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
