package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRecord(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "stop.jpg")
	if err := os.WriteFile(photo, []byte{0xff, 0xd8, 0xff}, 0o600); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	rec, err := buildRecord("bus_stop", []string{"depot=Depot 12", "conditions=Garbage", "conditions=Poor lighting"}, []string{photo})
	if err != nil {
		t.Fatalf("buildRecord returned error: %v", err)
	}
	if rec.Answers.Get("depot") != "Depot 12" {
		t.Fatalf("unexpected depot %q", rec.Answers.Get("depot"))
	}
	if got := rec.Answers["conditions"]; len(got) != 2 {
		t.Fatalf("expected two conditions, got %v", got)
	}
	if len(rec.Media) != 1 || rec.Media[0].Filename != "stop.jpg" {
		t.Fatalf("unexpected media %+v", rec.Media)
	}

	if _, err := buildRecord("bus_stop", []string{"depot"}, nil); err == nil {
		t.Fatalf("expected error for field without value")
	}
}

func TestHashPINCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hash-pin", "4821", "--cost", "4"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hash-pin returned error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "$2a$04$") {
		t.Fatalf("unexpected hash %q", out.String())
	}
}
