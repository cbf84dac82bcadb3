package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hrygo/cortex/internal/version"
)

// CatalogFile is the YAML shape for extending the built-in catalog with
// additional clusters and agents. The built-in seeds are never replaced,
// only appended to, so seed determinism is preserved when no file is given.
type CatalogFile struct {
	// MinEngineVersion, when set, rejects the catalog on engines older
	// than this semantic version.
	MinEngineVersion string `yaml:"min_engine_version"`

	Clusters []CatalogCluster `yaml:"clusters"`
	Agents   []CatalogAgent   `yaml:"agents"`
}

// CatalogCluster declares an extra cluster.
type CatalogCluster struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CatalogAgent declares an extra agent.
type CatalogAgent struct {
	ID             string   `yaml:"id"`
	Role           string   `yaml:"role"`
	Cluster        string   `yaml:"cluster"`
	Skills         []string `yaml:"skills"`
	Levels         []string `yaml:"levels"`
	Confidence     float64  `yaml:"confidence"`
	AvgExecSeconds float64  `yaml:"avg_execution_seconds"`
}

// LoadCatalog reads a catalog file and applies it to the registry.
// A missing path is not an error; the built-in catalog stands alone.
func (r *Registry) LoadCatalog(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unmarshal catalog %s: %w", path, err)
	}
	if file.MinEngineVersion != "" &&
		!version.IsVersionGreaterOrEqualThan(version.Version, file.MinEngineVersion) {
		return fmt.Errorf("catalog %s requires engine version >= %s, running %s",
			path, file.MinEngineVersion, version.Version)
	}
	return r.applyCatalog(&file)
}

func (r *Registry) applyCatalog(file *CatalogFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range file.Clusters {
		if c.ID == "" {
			return fmt.Errorf("catalog cluster without id")
		}
		if _, exists := r.byCl[c.ID]; exists {
			continue
		}
		cluster := &Cluster{ID: c.ID, Name: c.Name, Description: c.Description}
		r.clusters = append(r.clusters, cluster)
		r.byCl[c.ID] = cluster
	}

	for _, spec := range file.Agents {
		levels, err := parseLevels(spec.Levels)
		if err != nil {
			return fmt.Errorf("catalog agent %q: %w", spec.ID, err)
		}
		conf := spec.Confidence
		if conf == 0 {
			conf = 0.5
		}
		if conf < MinConfidence || conf > MaxConfidence {
			return fmt.Errorf("catalog agent %q: confidence %.3f out of bounds", spec.ID, conf)
		}
		a := &Agent{
			ID:             spec.ID,
			Role:           spec.Role,
			Cluster:        spec.Cluster,
			Skills:         spec.Skills,
			Levels:         levels,
			Confidence:     conf,
			AvgExecSeconds: spec.AvgExecSeconds,
			CreatedAt:      time.Now(),
		}
		if err := r.register(a); err != nil {
			return fmt.Errorf("catalog agent %q: %w", spec.ID, err)
		}
	}
	return nil
}

func parseLevels(raw []string) ([]Level, error) {
	if len(raw) == 0 {
		return []Level{LevelSimple, LevelMedium, LevelComplex}, nil
	}
	levels := make([]Level, 0, len(raw))
	for _, s := range raw {
		switch Level(s) {
		case LevelSimple, LevelMedium, LevelComplex:
			levels = append(levels, Level(s))
		default:
			return nil, fmt.Errorf("unknown level %q", s)
		}
	}
	return levels, nil
}
