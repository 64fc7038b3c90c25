package feedback

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "http://localhost:3000/page", "http://localhost:3000/page", false},
		{"strips query", "http://localhost:3000/page?tab=1&x=2", "http://localhost:3000/page", false},
		{"strips fragment", "http://localhost:3000/page#section", "http://localhost:3000/page", false},
		{"keeps port", "http://127.0.0.1:4747/a/b", "http://127.0.0.1:4747/a/b", false},
		{"root path", "https://example.com/", "https://example.com/", false},
		{"no path", "https://example.com", "https://example.com", false},
		{"relative", "/page", "", true},
		{"schemeless", "localhost:3000/page", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://localhost:3000/checkout", "/checkout"},
		{"http://localhost:3000/a/b?x=1", "/a/b"},
		{"http://localhost:3000", "http://localhost:3000"},
	}

	for _, tt := range tests {
		if got := titleFromURL(tt.raw); got != tt.want {
			t.Errorf("titleFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
