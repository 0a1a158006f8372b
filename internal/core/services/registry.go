package services

import (
	"path/filepath"

	"github.com/dkaya/expbench/internal/core/domain"
)

// Registry is the read-only experiment catalog. Built once at startup from
// config and shared by reference; there is no mutation API.
type Registry struct {
	root    string
	byName  map[string]domain.Experiment
	ordered []domain.Experiment
}

// NewRegistry indexes the declared experiments. root is the directory that
// contains one subdirectory per experiment name.
func NewRegistry(root string, experiments []domain.Experiment) *Registry {
	r := &Registry{
		root:    root,
		byName:  make(map[string]domain.Experiment, len(experiments)),
		ordered: append([]domain.Experiment(nil), experiments...),
	}
	for _, exp := range experiments {
		r.byName[exp.Name] = exp
	}
	return r
}

// Resolve returns the declaration for name or domain.ErrUnknownExperiment.
func (r *Registry) Resolve(name string) (domain.Experiment, error) {
	exp, ok := r.byName[name]
	if !ok {
		return domain.Experiment{}, domain.ErrUnknownExperiment
	}
	return exp, nil
}

// List returns the experiments in declaration order.
func (r *Registry) List() []domain.Experiment {
	return append([]domain.Experiment(nil), r.ordered...)
}

// Dir is the experiment's source directory on disk.
func (r *Registry) Dir(name string) string {
	return filepath.Join(r.root, name)
}
