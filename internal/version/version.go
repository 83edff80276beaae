// Package version implements the version manager: it loads a
// bitrate-laddered segment layout from JSON and hands out the next
// segment file path for the currently selected version and slot
// (spec.md §4.10).
package version

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileEntry is one segment file inside a version.
type FileEntry struct {
	SlotIndex  int    `json:"slot_index"`
	StartFrame uint64 `json:"start_frame"`
	EndFrame   uint64 `json:"end_frame"`
	Path       string `json:"path"`
}

// Ladder is one specific encoded version, tied to a bitrate.
type Ladder struct {
	Label      string      `json:"label"`
	BitrateBps uint64      `json:"bitrate_bps"`
	Dir        string      `json:"dir"`
	Files      []FileEntry `json:"files"`
}

// layout is the top-level JSON schema loaded from disk.
type layout struct {
	Input         string   `json:"input"`
	Width         uint32   `json:"width"`
	Height        uint32   `json:"height"`
	FPS           uint32   `json:"fps"`
	SlotSeconds   uint32   `json:"slot_seconds"`
	FramesPerSlot uint32   `json:"frames_per_slot"`
	BitratesBps   []uint64 `json:"bitrates_bps"`
	Slots         int      `json:"slots"`
	Versions      []Ladder `json:"versions"`
}

// Manager tracks the loaded layout plus the currently selected version
// and slot cursor.
type Manager struct {
	cfg            layout
	currentVersion int
	currentSlot    int
	actualBitrate  uint64
}

// Load reads and parses a version-manager layout file.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("version: read %s: %w", path, err)
	}
	var cfg layout
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("version: parse %s: %w", path, err)
	}
	m := &Manager{cfg: cfg}
	if len(cfg.BitratesBps) > 0 {
		m.actualBitrate = cfg.BitratesBps[0]
	}
	return m, nil
}

// Next returns the file path for the current version's current slot
// and advances the slot cursor, wrapping at the layout's slot count.
func (m *Manager) Next() string {
	slot := m.currentSlot
	m.currentSlot++
	if m.currentSlot >= m.cfg.Slots {
		m.currentSlot = 0
	}
	if m.currentVersion < len(m.cfg.BitratesBps) {
		m.actualBitrate = m.cfg.BitratesBps[m.currentVersion]
	}
	if m.currentVersion >= len(m.cfg.Versions) {
		return ""
	}
	files := m.cfg.Versions[m.currentVersion].Files
	if slot >= len(files) {
		return ""
	}
	return files[slot].Path
}

// SetVersion updates the current version if the index is within
// bounds; out-of-bounds indices are ignored.
func (m *Manager) SetVersion(versionIndex int) {
	if versionIndex >= 0 && versionIndex < len(m.cfg.Versions) {
		m.currentVersion = versionIndex
	}
}

// CurrentVersion returns the currently selected version index.
func (m *Manager) CurrentVersion() int { return m.currentVersion }

// AvailableBitrates returns the full laddered bitrate list, in version
// order (supplemented per original_source/tx/src/version_manager.rs's
// available_bitrates()).
func (m *Manager) AvailableBitrates() []uint64 {
	return m.cfg.BitratesBps
}

// ActualBitrate returns the bitrate associated with the most recently
// served slot (supplemented per get_bitrate()).
func (m *Manager) ActualBitrate() uint64 { return m.actualBitrate }
