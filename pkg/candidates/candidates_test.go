package candidates

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

var ref = time.Date(2025, time.March, 2, 15, 4, 5, 0, time.UTC)

func TestGenerate(t *testing.T) {
	got := Generate("http://kinovod{date}.pro", ref, 5)
	want := []string{
		"http://kinovod020325.pro",
		"http://kinovod010325.pro",
		"http://kinovod280225.pro",
		"http://kinovod270225.pro",
		"http://kinovod260225.pro",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("candidate %d: expected %s, got %s", i, want[i], got[i].URL)
		}
		if got[i].Offset != i {
			t.Errorf("candidate %d: expected offset %d, got %d", i, i, got[i].Offset)
		}
	}
}

func TestGenerate_WindowSizes(t *testing.T) {
	tokenRe := regexp.MustCompile(`^http://kinovod(\d{6})\.pro$`)
	for _, w := range []int{1, 5, 6, 10, 40} {
		got := Generate("http://kinovod{date}.pro", ref, w)
		if len(got) != w {
			t.Fatalf("window %d: expected %d candidates, got %d", w, w, len(got))
		}
		for i, c := range got {
			if !tokenRe.MatchString(c.URL) {
				t.Fatalf("window %d: candidate %q does not match template", w, c.URL)
			}
			if i > 0 && !c.Date.Before(got[i-1].Date) {
				t.Fatalf("window %d: dates not strictly decreasing at %d", w, i)
			}
		}
	}
}

func TestGenerate_EmptyWindow(t *testing.T) {
	if got := Generate("http://x{date}.com", ref, 0); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
	if got := Generate("http://x{date}.com", ref, -3); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := URLs(Generate("https://m{date}.example.com/path", ref, 6))
	b := URLs(Generate("https://m{date}.example.com/path", ref, 6))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical output, got %v and %v", a, b)
		}
	}
}

func TestToken(t *testing.T) {
	d := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)
	if got := Token(d); got != "311224" {
		t.Fatalf("expected 311224, got %s", got)
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  error
		anyErr   bool
	}{
		{name: "default", template: "http://kinovod{date}.pro"},
		{name: "path placeholder on ip", template: "http://127.0.0.1:8080/{date}"},
		{name: "localhost", template: "http://localhost/{date}"},
		{name: "no placeholder", template: "http://kinovod.pro", wantErr: ErrNoPlaceholder},
		{name: "two placeholders", template: "http://a{date}.pro/{date}", wantErr: ErrManyPlaceholders},
		{name: "ftp", template: "ftp://a{date}.pro", wantErr: ErrUnsupportedScheme},
		{name: "no host", template: "http:///{date}", anyErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.template)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatal("expected an error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestRegistrable(t *testing.T) {
	if got := Registrable("http://www.kinovod020325.pro/x"); got != "kinovod020325.pro" {
		t.Fatalf("expected kinovod020325.pro, got %q", got)
	}
	if got := Registrable("http://127.0.0.1:9999/020325"); got != "" {
		t.Fatalf("expected empty for ip host, got %q", got)
	}
}
