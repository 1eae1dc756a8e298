package chatd

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("chatd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "kotha.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty default secret, got %q", cfg.JWTSecret)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KOTHA_CHATD_HTTP_ADDR", "env-addr")
	t.Setenv("KOTHA_DB_PATH", "env-db")
	t.Setenv("KOTHA_JWT_SECRET", "env-secret")

	fs := flag.NewFlagSet("chatd", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-db-path", "flag-db",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "flag-db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.JWTSecret)
	}
}
