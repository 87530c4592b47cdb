package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streambench/internal/bench"
	"streambench/internal/workload"
)

// HistoryItem is the durable summary of one finished sweep run.
type HistoryItem struct {
	ID         string                                      `json:"id"`
	Timestamp  time.Time                                   `json:"timestamp"`
	Modes      []workload.BackendMode                      `json:"modes"`
	TrialCount int                                         `json:"trial_count"`
	Reports    map[workload.BackendMode]bench.OptimalConfig `json:"reports"`
}

// History keeps a bounded log of past sweep runs in a single JSON file.
type History struct {
	mu       sync.RWMutex
	filePath string
	items    []HistoryItem
}

const maxHistoryItems = 100

// OpenHistory loads the history file under dir, defaulting to ~/.streambench.
func OpenHistory(dir string) (*History, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".streambench")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	h := &History{
		filePath: filepath.Join(dir, "history.json"),
	}
	h.load()
	return h, nil
}

func (h *History) load() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if err != nil {
		return // file might not exist yet
	}
	json.Unmarshal(data, &h.items)
}

// Save prepends one item and rewrites the file, keeping the newest 100.
func (h *History) Save(item HistoryItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append([]HistoryItem{item}, h.items...)
	if len(h.items) > maxHistoryItems {
		h.items = h.items[:maxHistoryItems]
	}

	data, err := json.MarshalIndent(h.items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.filePath, data, 0644)
}

func (h *History) List() []HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res := make([]HistoryItem, len(h.items))
	copy(res, h.items)
	return res
}

func (h *History) Get(id string) *HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, item := range h.items {
		if item.ID == id {
			return &item
		}
	}
	return nil
}
