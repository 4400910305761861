package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"b3collect/internal/errors"
)

// Paths contains all the application paths.
// This is the single source of truth for every directory the collectors touch.
type Paths struct {
	BaseDir       string
	IndicatorsDir string
	StocksDir     string
	ReitsDir      string
	DataComDir    string
	LogsDir       string
}

// GetPaths resolves the application paths from the configuration.
// The base directory is, in order: paths.base_dir, the nearest ancestor of the
// executable named paths.project_name, the executable directory.
func GetPaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		exeDir, err := executableDir()
		if err != nil {
			return nil, err
		}
		base = exeDir
		if cfg.ProjectName != "" {
			root, err := FindProjectRoot(exeDir, cfg.ProjectName)
			if err != nil {
				return nil, err
			}
			base = root
		}
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.NewConfigError("failed to resolve base directory", err).
			WithContext("base_dir", base)
	}
	return NewPaths(abs, cfg), nil
}

// NewPaths builds Paths rooted at base without touching the file system
func NewPaths(base string, cfg PathsConfig) *Paths {
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(base, dir)
	}

	return &Paths{
		BaseDir:       base,
		IndicatorsDir: resolve(cfg.IndicatorsDir),
		StocksDir:     resolve(cfg.StocksDir),
		ReitsDir:      resolve(cfg.ReitsDir),
		DataComDir:    resolve(cfg.DataComDir),
		LogsDir:       resolve(cfg.LogsDir),
	}
}

// FindProjectRoot walks up from start until it finds a directory named name
func FindProjectRoot(start, name string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", errors.NewConfigError("failed to resolve start directory", err)
	}
	for {
		if filepath.Base(current) == name {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.NewNotFoundError(fmt.Sprintf("project directory %q", name)).
				WithContext("start", start)
		}
		current = parent
	}
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.NewConfigError("failed to get executable path", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", errors.NewConfigError("failed to resolve executable symlinks", err)
	}
	return filepath.Dir(exe), nil
}

// OutputDir returns the price output directory of a universe
func (p *Paths) OutputDir(universe string) (string, error) {
	switch universe {
	case UniverseStocks:
		return p.StocksDir, nil
	case UniverseReits:
		return p.ReitsDir, nil
	default:
		return "", errors.NewConfigError(fmt.Sprintf("unknown universe %q", universe), nil)
	}
}

// EnsureDirectories creates the directories the collectors write into.
// Output directories are not created here: a missing output directory is a
// structural error reported by the checkpoint.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.IndicatorsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetIndicatorPath returns the path of a file in the indicators directory
func (p *Paths) GetIndicatorPath(filename string) string {
	return filepath.Join(p.IndicatorsDir, filename)
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("indicators", p.IndicatorsDir),
			slog.String("stocks", p.StocksDir),
			slog.String("reits", p.ReitsDir),
			slog.String("datacom", p.DataComDir),
			slog.String("logs", p.LogsDir),
		))
}
