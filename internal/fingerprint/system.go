package fingerprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// SystemSource reads hardware attributes from the running machine. Queries
// are OS-specific; on platforms without a usable source for an attribute it
// reports an empty value rather than failing.
type SystemSource struct{}

// NewSystemSource creates a source for the current platform.
func NewSystemSource() *SystemSource {
	return &SystemSource{}
}

// ProcessorID returns a stable processor identification string.
func (s *SystemSource) ProcessorID(ctx context.Context) (string, error) {
	switch runtime.GOOS {
	case "windows":
		// Matches the processor identity exposed to every process;
		// stable across reboots on the same machine.
		return os.Getenv("PROCESSOR_IDENTIFIER"), nil
	case "linux":
		return linuxProcessorID()
	default:
		// No per-processor serial on this platform; fall back to the
		// platform tuple, which is at least stable.
		return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH), nil
	}
}

// FirmwareSerial returns the firmware/BIOS serial number where readable.
func (s *SystemSource) FirmwareSerial(ctx context.Context) (string, error) {
	if runtime.GOOS != "linux" {
		return "", nil
	}

	// board_serial needs root on many distributions; product_uuid is the
	// DMI fallback.
	for _, path := range []string{
		"/sys/class/dmi/id/board_serial",
		"/sys/class/dmi/id/product_uuid",
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if serial := strings.TrimSpace(string(data)); serial != "" {
			return serial, nil
		}
	}

	return "", fmt.Errorf("no readable firmware serial")
}

// DiskSerial returns the serial number of the first physical disk found.
func (s *SystemSource) DiskSerial(ctx context.Context) (string, error) {
	if runtime.GOOS != "linux" {
		return "", nil
	}

	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return "", fmt.Errorf("failed to list block devices: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	// Deterministic pick regardless of directory iteration order.
	sort.Strings(names)

	for _, name := range names {
		// Virtual devices (loop, ram, dm) have no serial file.
		data, err := os.ReadFile(filepath.Join("/sys/block", name, "device", "serial"))
		if err != nil {
			continue
		}
		if serial := strings.TrimSpace(string(data)); serial != "" {
			return serial, nil
		}
	}

	return "", fmt.Errorf("no block device exposes a serial")
}

func linuxProcessorID() (string, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return "", fmt.Errorf("failed to read cpuinfo: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			if _, value, found := strings.Cut(line, ":"); found {
				return strings.TrimSpace(value), nil
			}
		}
	}

	return "", fmt.Errorf("no model name in cpuinfo")
}
