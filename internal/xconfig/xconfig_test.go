package xconfig_test

import (
	"strings"
	"testing"

	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/xconfig"
)

func TestParseDiskDirectives(t *testing.T) {
	src := strings.NewReader(`
# two disks, different backends
disk=/tmp/a.bin,128,syscall
disk=/tmp/b.bin,64,simdisk
`)
	cfg, err := xconfig.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Disks) != 2 {
		t.Fatalf("len(Disks) = %d, want 2", len(cfg.Disks))
	}
	if cfg.Disks[0].Path != "/tmp/a.bin" || cfg.Disks[0].SizeBytes != 128<<20 || cfg.Disks[0].Backend != diskfile.Syscall {
		t.Fatalf("Disks[0] = %+v", cfg.Disks[0])
	}
	if cfg.Disks[1].SizeBytes != 64<<20 {
		t.Fatalf("Disks[1].SizeBytes = %d, want %d", cfg.Disks[1].SizeBytes, 64<<20)
	}
}

func TestParseRejectsUnknownDirective(t *testing.T) {
	_, err := xconfig.Parse(strings.NewReader("bogus=1\n"))
	if err == nil {
		t.Fatal("expected error for unknown directive")
	}
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := xconfig.Parse(strings.NewReader("disk=/tmp/c.bin,1,quantum\n"))
	if err == nil {
		t.Fatal("expected error for unknown io_impl")
	}
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	cfg, err := xconfig.Parse(strings.NewReader("\n# comment only\n\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Disks) != 0 {
		t.Fatalf("len(Disks) = %d, want 0", len(cfg.Disks))
	}
}
