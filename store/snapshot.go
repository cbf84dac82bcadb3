package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Snapshot is the persisted form of the memory store. Session state is
// deliberately absent; only the learned layers survive a restart.
type Snapshot struct {
	PerformanceMemory []PerformanceRecord `json:"performanceMemory"`
	SkillEvolution    []Pattern           `json:"skillEvolution"`
	VectorMemory      []TaskSolution      `json:"vectorMemory"`
	SavedAt           int64               `json:"savedAt"`
}

// Save writes the snapshot as a single JSON document. The write goes
// through a temp file and rename so a crash cannot leave a torn snapshot.
func (m *Memory) Save(path string) error {
	m.mu.RLock()
	snap := Snapshot{
		PerformanceMemory: append([]PerformanceRecord(nil), m.performance...),
		SkillEvolution:    make([]Pattern, 0, len(m.patternOrder)),
		VectorMemory:      append([]TaskSolution(nil), m.solutions...),
		SavedAt:           time.Now().UnixMilli(),
	}
	for _, key := range m.patternOrder {
		snap.SkillEvolution = append(snap.SkillEvolution, *m.patterns[key])
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal memory snapshot")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create snapshot dir %s", dir)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "write snapshot %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename snapshot %s", path)
	}
	return nil
}

// Load replaces the learned layers with the snapshot contents. A missing
// file is not an error: the store simply starts fresh.
func (m *Memory) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read snapshot %s", path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrapf(err, "unmarshal snapshot %s", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.performance = snap.PerformanceMemory
	m.solutions = snap.VectorMemory
	m.patterns = make(map[string]*Pattern, len(snap.SkillEvolution))
	m.patternOrder = m.patternOrder[:0]
	for i := range snap.SkillEvolution {
		p := snap.SkillEvolution[i]
		m.patterns[p.Key] = &p
		m.patternOrder = append(m.patternOrder, p.Key)
	}
	return nil
}
