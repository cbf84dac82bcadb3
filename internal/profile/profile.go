package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the engine.
type Profile struct {
	// Mode can be "prod", "dev" or "demo".
	Mode string

	// Data is the directory holding memory snapshots and agent catalogs.
	Data string

	// MaxWorkers bounds concurrent task execution.
	MaxWorkers int

	// MetricsAddr, when non-empty, serves Prometheus metrics on this address.
	MetricsAddr string

	// AgentsConfig is an optional YAML catalog extending the built-in agents.
	AgentsConfig string

	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// SnapshotFile is the memory snapshot location inside the data directory.
func (p *Profile) SnapshotFile() string {
	return filepath.Join(p.Data, fmt.Sprintf("cortex_memory_%s.json", p.Mode))
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already set
// by flags win over the environment.
func (p *Profile) FromEnv() {
	if p.MaxWorkers == 0 {
		p.MaxWorkers = getEnvOrDefaultInt("CORTEX_MAX_WORKERS", 0)
	}
	if p.MetricsAddr == "" {
		p.MetricsAddr = getEnvOrDefault("CORTEX_METRICS_ADDR", "")
	}
	if p.AgentsConfig == "" {
		p.AgentsConfig = getEnvOrDefault("CORTEX_AGENTS_CONFIG", "")
	}
	if p.Data == "" {
		p.Data = getEnvOrDefault("CORTEX_DATA", "")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.MaxWorkers < 0 {
		return errors.Errorf("max workers must be positive, got %d", p.MaxWorkers)
	}

	if p.Data == "" {
		if p.IsDev() {
			p.Data = "."
		} else if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "cortex")
		} else {
			p.Data = "/var/opt/cortex"
		}
	}
	if _, err := os.Stat(p.Data); os.IsNotExist(err) {
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.AgentsConfig != "" {
		if _, err := os.Stat(p.AgentsConfig); err != nil {
			return errors.Wrapf(err, "unable to access agents config %s", p.AgentsConfig)
		}
	}

	return nil
}
