// Package xconfig parses the disk configuration file spec.md section 6
// names: one directive per line, '#' starts a comment, disks are declared
// with "disk=<path>,<size_MiB>,<io_impl>". There is no external config
// library in play here, matching the teacher's own hand-rolled flag/env
// wiring in main.go rather than reaching for a configuration framework.
package xconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/diskfile"
)

func diskIDOf(idx int) bid.DiskID { return bid.DiskID(idx) }

// DiskSpec is one parsed "disk=" directive.
type DiskSpec struct {
	Path      string
	SizeBytes int64
	Backend   diskfile.Backend
}

// Config is a parsed configuration file: the list of disks to open, in
// declaration order.
type Config struct {
	Disks []DiskSpec
}

const (
	defaultConfigPath = "./.stxxl"
	fallbackDiskPath  = "/var/tmp/stxxl"
	fallbackDiskMiB   = 100
)

// Load reads the config file named by the STXXLCFG environment variable,
// defaulting to "./.stxxl". If that file does not exist, it returns the
// single-disk fallback: a 100 MiB syscall-backed file at /var/tmp/stxxl.
func Load() (*Config, error) {
	path := os.Getenv("STXXLCFG")
	if path == "" {
		path = defaultConfigPath
	}

	f, err := os.Open(path)
	if errorIsNotExist(err) {
		return &Config{Disks: []DiskSpec{{
			Path:      fallbackDiskPath,
			SizeBytes: fallbackDiskMiB << 20,
			Backend:   diskfile.Syscall,
		}}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xconfig: open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

func errorIsNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}

// Parse reads directives from r. Unknown directives are an error; blank
// lines and '#' comments are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("xconfig: line %d: missing '=' in %q", lineNo, line)
		}
		switch key {
		case "disk":
			spec, err := parseDiskDirective(val)
			if err != nil {
				return nil, fmt.Errorf("xconfig: line %d: %w", lineNo, err)
			}
			cfg.Disks = append(cfg.Disks, spec)
		default:
			return nil, fmt.Errorf("xconfig: line %d: unknown directive %q", lineNo, key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("xconfig: scan: %w", err)
	}
	return cfg, nil
}

func parseDiskDirective(val string) (DiskSpec, error) {
	parts := strings.Split(val, ",")
	if len(parts) != 3 {
		return DiskSpec{}, fmt.Errorf("disk directive wants path,size_MiB,io_impl, got %q", val)
	}
	path := strings.TrimSpace(parts[0])
	mib, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return DiskSpec{}, fmt.Errorf("invalid size_MiB %q: %w", parts[1], err)
	}
	backend := diskfile.Backend(strings.TrimSpace(parts[2]))
	switch backend {
	case diskfile.Syscall, diskfile.Mmap, backendSimdisk:
	default:
		return DiskSpec{}, fmt.Errorf("unknown io_impl %q", backend)
	}
	return DiskSpec{Path: path, SizeBytes: mib << 20, Backend: backend}, nil
}

// backendSimdisk names the in-memory test backend; it has the same value
// as diskfile.Simdisk. Open below resolves it to an in-memory SimDisk
// rather than opening a real file.
const backendSimdisk diskfile.Backend = "simdisk"

// Open opens every disk named by cfg, selecting a backend implementation
// per DiskSpec.Backend. Disk ids are assigned in slice order, matching
// the order the resulting []diskfile.File is handed to manager.New.
func Open(cfg *Config) ([]diskfile.File, error) {
	files := make([]diskfile.File, 0, len(cfg.Disks))
	for i, d := range cfg.Disks {
		f, err := openOne(d, i)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func openOne(d DiskSpec, idx int) (diskfile.File, error) {
	switch d.Backend {
	case diskfile.Syscall:
		f, err := diskfile.OpenSyscallFile(d.Path, diskIDOf(idx), d.SizeBytes, false)
		if err != nil {
			return nil, fmt.Errorf("xconfig: open syscall disk %q: %w", d.Path, err)
		}
		return f, nil
	case diskfile.Mmap:
		f, err := diskfile.OpenMmapFile(d.Path, diskIDOf(idx), d.SizeBytes)
		if err != nil {
			return nil, fmt.Errorf("xconfig: open mmap disk %q: %w", d.Path, err)
		}
		return f, nil
	case backendSimdisk:
		return diskfile.NewSimDisk(diskIDOf(idx), d.SizeBytes), nil
	default:
		return nil, fmt.Errorf("xconfig: unknown io_impl %q", d.Backend)
	}
}
