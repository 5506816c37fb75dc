package catalog

import (
	"os"
	"path/filepath"
	"strings"
)

// rule is one step of the classification pipeline. Rules run in slice
// order with strict precedence: the first match wins and later rules never
// override it. Markers are checked before filename keywords anywhere in the
// pipeline, so a directory carrying a signature always beats a keyword hit.
// The ordering of StockOS before Linux resolves the kernel-marker overlap
// between the two deterministically; change the slice, not call sites, to
// re-rank.
type rule struct {
	category    Category
	description string
	markers     []string // signature subdirectories or files inside the payload
	keywords    []string // filename substrings for standalone image files
	bootFiles   []string // any of these makes a directory payload bootable
}

var rules = []rule{
	{
		category:    CategoryRetroPie,
		description: "RetroPie retro gaming system",
		markers:     []string{"retropie", "RetroPie"},
		keywords:    []string{"retropie"},
	},
	{
		category:    CategoryBatocera,
		description: "Batocera gaming distribution",
		markers:     []string{"batocera", "BATOCERA"},
		keywords:    []string{"batocera"},
	},
	{
		category:    CategoryRecalbox,
		description: "Recalbox gaming OS",
		markers:     []string{"recalbox"},
		keywords:    []string{"recalbox"},
	},
	{
		category:    CategoryStockOS,
		description: "Vendor operating system",
		markers:     []string{"config.txt+cmdline.txt"},
		keywords:    []string{"raspios", "raspberry"},
	},
	{
		category:    CategoryLinux,
		description: "General Linux distribution",
		markers:     []string{"ubuntu", "vmlinuz", "etc/lsb-release"},
		keywords:    []string{"ubuntu", "debian", "armbian"},
	},
}

var bootMarkers = []string{"boot.sh", "kernel.img", "config.txt", "system.img", "vmlinuz"}

// classifyDir classifies a payload directory by signature markers only;
// contents of files are never inspected.
func classifyDir(path string) (Category, string) {
	for _, r := range rules {
		for _, marker := range r.markers {
			if matchMarker(path, marker) {
				return r.category, r.description
			}
		}
	}
	return CategoryUnknown, "Unknown operating system"
}

// classifyImageFile classifies a standalone image file by filename keyword,
// same precedence order as the directory rules.
func classifyImageFile(name string) (Category, string) {
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category, r.description + " image"
			}
		}
	}
	return CategoryUnknown, "Unknown OS image"
}

// matchMarker checks a signature marker against a payload directory. A
// marker of the form "a+b" requires both entries to exist.
func matchMarker(dir, marker string) bool {
	if strings.Contains(marker, "+") {
		for _, part := range strings.Split(marker, "+") {
			if !pathExists(filepath.Join(dir, part)) {
				return false
			}
		}
		return true
	}
	return pathExists(filepath.Join(dir, marker))
}

// isBootableDir checks for the presence of any known boot file.
func isBootableDir(dir string) bool {
	for _, marker := range bootMarkers {
		if pathExists(filepath.Join(dir, marker)) {
			return true
		}
	}
	return false
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isImageFile reports whether a filename looks like a standalone OS image.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".img", ".iso":
		return true
	}
	return false
}
