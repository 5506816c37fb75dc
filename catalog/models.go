package catalog

import "time"

// Category classifies an OS payload. The three gaming categories are kept
// distinct because their boot sequences differ in which frontend they
// signal, even though they behave identically for most policy decisions.
type Category string

const (
	CategoryRetroPie Category = "retropie"
	CategoryBatocera Category = "batocera"
	CategoryRecalbox Category = "recalbox"
	CategoryStockOS  Category = "stock"   // vendor OS, e.g. Raspberry Pi OS
	CategoryLinux    Category = "linux"   // general-purpose Linux
	CategoryUnknown  Category = "unknown"
)

// IsGaming reports whether the category is one of the retro-gaming
// distributions.
func (c Category) IsGaming() bool {
	switch c {
	case CategoryRetroPie, CategoryBatocera, CategoryRecalbox:
		return true
	}
	return false
}

// OSEntry is one discoverable OS payload in the catalog view. Name is
// unique within a snapshot.
type OSEntry struct {
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	Bootable    bool       `json:"bootable"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	SizeMB      int64      `json:"size_mb,omitempty"`
}
