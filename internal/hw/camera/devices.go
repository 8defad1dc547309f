package camera

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Device is a V4L2 video node present on the host.
type Device struct {
	Path string // e.g. /dev/video0
	Name string // driver-reported name from sysfs, or Path when unknown
}

// Devices lists /dev/video* nodes. sysRoot is normally "/sys/class/video4linux".
func Devices(devGlob, sysRoot string) ([]Device, error) {
	paths, err := filepath.Glob(devGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	devices := make([]Device, 0, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		if !strings.HasPrefix(base, "video") {
			continue
		}
		name := readFirstLine(filepath.Join(sysRoot, base, "name"))
		if name == "" {
			name = path
		}
		devices = append(devices, Device{Path: path, Name: name})
	}
	return devices, nil
}

func readFirstLine(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	return strings.TrimSpace(line)
}
