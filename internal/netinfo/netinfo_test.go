package netinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLinkStatusReadsSysfsFiles(t *testing.T) {
	dir := t.TempDir()
	ifDir := filepath.Join(dir, "eth0")
	if err := os.MkdirAll(ifDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ifDir, "speed"), []byte("1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ifDir, "carrier"), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Collector{sysClassNet: dir}
	st, err := c.LinkStatus("eth0")
	if err != nil {
		t.Fatal(err)
	}
	if st.SpeedMbps != 1000 || !st.Carrier {
		t.Fatalf("unexpected link status: %+v", st)
	}
}

func TestLinkStatusNegativeSpeedWhenDown(t *testing.T) {
	dir := t.TempDir()
	ifDir := filepath.Join(dir, "eth0")
	if err := os.MkdirAll(ifDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ifDir, "speed"), []byte("-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ifDir, "carrier"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Collector{sysClassNet: dir}
	st, err := c.LinkStatus("eth0")
	if err != nil {
		t.Fatal(err)
	}
	if st.SpeedMbps != 0 || st.Carrier {
		t.Fatalf("unexpected link status for down link: %+v", st)
	}
}
