package utils

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"debug", logrus.DebugLevel, false},
		{"INFO", logrus.InfoLevel, false},
		{"warn", logrus.WarnLevel, false},
		{"warning", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"fatal", logrus.FatalLevel, false},
		{"verbose", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDBLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.sqlite")
	lock, err := NewDBLock(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func TestGetAbsDBPath_Default(t *testing.T) {
	p, err := GetAbsDBPath("")
	if err != nil {
		t.Skip("no home directory")
	}
	if filepath.Base(p) != "history.sqlite" || !filepath.IsAbs(p) {
		t.Fatalf("unexpected default path %q", p)
	}
}
