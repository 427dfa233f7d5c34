package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-substitute/internal/models"
	"github.com/noah-isme/sma-substitute/pkg/config"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/tabular"
)

const rosterColumns = 2

// SourceRepository reads the raw timetable, roster and profile files from disk.
type SourceRepository struct {
	cfg       config.SourcesConfig
	validator *validator.Validate
}

// NewSourceRepository constructs the repository. Relative file names resolve against cfg.DataDir.
func NewSourceRepository(cfg config.SourcesConfig, validate *validator.Validate) *SourceRepository {
	if validate == nil {
		validate = validator.New()
	}
	return &SourceRepository{cfg: cfg, validator: validate}
}

// LoadTimetable reads the timetable as a grid of columns cells per row.
func (r *SourceRepository) LoadTimetable(ctx context.Context, columns int) (*tabular.Grid, error) {
	path := r.resolve(r.cfg.TimetableFile)
	data, err := r.read(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.WrapAs(appErrors.ErrTimetableMissing, err, "timetable file "+path+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read timetable")
	}
	return readGrid(path, data, columns)
}

// LoadRoster reads the substitute roster. A missing file yields ErrNotFound.
func (r *SourceRepository) LoadRoster(ctx context.Context) (*tabular.Grid, error) {
	path := r.resolve(r.cfg.RosterFile)
	data, err := r.read(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster file "+path+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read roster")
	}
	return readGrid(path, data, rosterColumns)
}

// LoadProfiles reads the optional YAML teacher profiles.
func (r *SourceRepository) LoadProfiles(ctx context.Context) ([]models.TeacherProfile, error) {
	if r.cfg.ProfilesFile == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no profiles file configured")
	}
	path := r.resolve(r.cfg.ProfilesFile)
	data, err := r.read(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profiles file "+path+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read profiles")
	}

	var doc models.TeacherProfiles
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, err, "profiles file is not valid YAML")
	}
	if err := r.validator.Struct(doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher profile")
	}
	return doc.Teachers, nil
}

func (r *SourceRepository) read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (r *SourceRepository) resolve(name string) string {
	if filepath.IsAbs(name) || r.cfg.DataDir == "" {
		return name
	}
	return filepath.Join(r.cfg.DataDir, name)
}

func readGrid(path string, data []byte, columns int) (*tabular.Grid, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return tabular.ReadXLSX(data, columns)
	}
	return tabular.ReadCSV(data, columns)
}
