package config

import (
	"os"
	"path/filepath"
	"testing"

	"loanchain/crypto"
)

func testBech32(t *testing.T, fill byte) string {
	t.Helper()
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.FromRaw(raw).String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("rpc address: got %q", cfg.RPCAddress)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	// The starter file has no admin; it must not validate as-is.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for default config")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	admin := testBech32(t, 0x01)
	treasury := testBech32(t, 0x02)
	content := "RPCAddress = \":9000\"\nAdminAddress = \"" + admin + "\"\nFeeTreasuryAddress = \"" + treasury + "\"\nProcessingFeeBps = 100\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" {
		t.Fatalf("rpc address: got %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./loan-data" {
		t.Fatalf("data dir default not applied: got %q", cfg.DataDir)
	}
	if cfg.ProcessingFeeBps != 100 {
		t.Fatalf("processing fee: got %d", cfg.ProcessingFeeBps)
	}
	decoded, err := cfg.Admin()
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if decoded.String() != admin {
		t.Fatalf("admin round trip: got %s, want %s", decoded, admin)
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "AdminAddress = \"not-bech32\"\nFeeTreasuryAddress = \"" + testBech32(t, 0x02) + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid admin address")
	}
}
