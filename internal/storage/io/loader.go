package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/g8/uafrepro/internal/model"
)

// TargetsRepository loads the target descriptors from a JSON or YAML file.
// JSON is decoded as YAML flow syntax.
type TargetsRepository struct {
	fs fs.FS
}

// NewTargetsRepository creates a new targets repository.
func NewTargetsRepository(filesystem fs.FS) *TargetsRepository {
	return &TargetsRepository{fs: filesystem}
}

// ListTargets loads and validates every target of the file, in file order.
func (r *TargetsRepository) ListTargets(ctx context.Context, path string) ([]model.Target, error) {
	data, err := fs.ReadFile(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("targets file %s: %w", path, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var targets []TargetConfig
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parsing targets file %s: %w: %w", path, model.ErrNotValid, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("targets file %s has no targets: %w", path, model.ErrNotValid)
	}

	res := make([]model.Target, 0, len(targets))
	for _, t := range targets {
		res = append(res, t.toModel())
	}

	if err := model.ValidateTargets(res); err != nil {
		return nil, fmt.Errorf("invalid targets file %s: %w", path, err)
	}

	return res, nil
}

// TargetConfig represents one entry of the targets file.
type TargetConfig struct {
	ProjectName       string        `yaml:"project_name"`
	DockerName        string        `yaml:"docker_name"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	PrivateKeyPath    string        `yaml:"private_key_path"`
	Commands          []string      `yaml:"commands"`
	Callback          string        `yaml:"callback"`
	UploadPath        string        `yaml:"upload_path"`
	Markers           MarkersConfig `yaml:"markers"`
	ExcludeFromReport bool          `yaml:"exclude_from_report"`
}

// MarkersConfig represents the markers of the generic detectors.
type MarkersConfig struct {
	Positive string `yaml:"positive"`
	Negative string `yaml:"negative"`
}

func (c TargetConfig) toModel() model.Target {
	return model.Target{
		ProjectName:       c.ProjectName,
		ContainerName:     c.DockerName,
		Host:              c.Host,
		Port:              c.Port,
		Username:          c.Username,
		Password:          c.Password,
		PrivateKeyPath:    c.PrivateKeyPath,
		Commands:          append([]string(nil), c.Commands...),
		Detector:          c.Callback,
		UploadPath:        c.UploadPath,
		Markers:           model.Markers{Positive: c.Markers.Positive, Negative: c.Markers.Negative},
		ExcludeFromReport: c.ExcludeFromReport,
	}
}
