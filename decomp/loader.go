// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decomp

import (
	"os"

	"github.com/gx-org/jit/build/importer"
	"github.com/gx-org/jit/build/schema"
	"github.com/gx-org/jit/decomp/builtin"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/mod/semver"
)

const (
	// BundleVersion is the version of the bundle format supported by the loader.
	// Bundles declare their version with a //jit:bundle directive.
	BundleVersion = "v1.0.0"

	bundleDirective    = "bundle"
	decomposeDirective = "decompose"
)

type (
	// Bundle is the source of a set of decompositions with its manifest.
	// Functions of the source can also declare the operator they decompose
	// with a //jit:decompose directive followed by the schema of the operator.
	Bundle struct {
		Filename string
		Source   []byte
		Manifest []builtin.Entry
	}

	// Loader returns the bundle loaded by a registry.
	Loader func() (*Bundle, error)
)

// BuiltinLoader returns a loader for the builtin decompositions.
func BuiltinLoader() Loader {
	return func() (*Bundle, error) {
		return &Bundle{
			Filename: builtin.Filename,
			Source:   builtin.Source(),
			Manifest: builtin.Manifest(),
		}, nil
	}
}

// FileLoader returns a loader reading a bundle from a file.
// The operators decomposed by the bundle are declared with directives.
func FileLoader(path string) Loader {
	return func() (*Bundle, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read bundle")
		}
		return &Bundle{Filename: path, Source: src}, nil
	}
}

func checkBundleVersion(cu *importer.CompilationUnit) error {
	dir, ok := cu.Directive(bundleDirective)
	if !ok {
		return errors.Errorf("missing %s%s directive", importer.DirectivePrefix, bundleDirective)
	}
	version := dir.Value
	if !semver.IsValid(version) {
		return errors.Errorf("invalid bundle version %q", version)
	}
	if semver.Major(version) != semver.Major(BundleVersion) || semver.Compare(version, BundleVersion) > 0 {
		return errors.Errorf("bundle version %s not supported: want %s or a compatible earlier version", version, BundleVersion)
	}
	return nil
}

// manifest returns the entries of the bundle manifest followed by the
// entries declared with directives.
func manifest(bundle *Bundle, cu *importer.CompilationUnit) []builtin.Entry {
	entries := append([]builtin.Entry{}, bundle.Manifest...)
	for _, fn := range cu.Functions() {
		for _, dir := range fn.Directives {
			if dir.Name != decomposeDirective {
				continue
			}
			entries = append(entries, builtin.Entry{Schema: dir.Value, Function: fn.Name})
		}
	}
	return entries
}

// loadBundle compiles a bundle and installs all its decompositions.
// The caller must hold the write lock.
func (r *Registry) loadBundle(bundle *Bundle) (entryErrs error, err error) {
	cu := importer.NewCompilationUnit(r.ops)
	if err := cu.Define(bundle.Filename, bundle.Source); err != nil {
		return nil, errors.Wrapf(err, "cannot compile bundle %s", bundle.Filename)
	}
	if err := checkBundleVersion(cu); err != nil {
		return nil, errors.Wrapf(err, "%s", bundle.Filename)
	}
	var errs error
	for _, entry := range manifest(bundle, cu) {
		s, err := schema.Parse(entry.Schema)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fn, ok := cu.Function(entry.Function)
		if !ok {
			errs = multierr.Append(errs, errors.Errorf("%s: function %s decomposing %s not found", bundle.Filename, entry.Function, s.Signature()))
			continue
		}
		if got, want := len(fn.Graph.Inputs()), len(s.Arguments); got != want {
			errs = multierr.Append(errs, errors.Errorf("%s: function %s has %d parameter(s) but %s has %d argument(s)", bundle.Filename, fn.Name, got, s.Signature(), want))
			continue
		}
		r.install(s, fn.Graph, r.newFunction(s, fn.Graph))
		r.logger.Debug("loaded decomposition", "schema", s.Signature(), "function", fn.Name)
	}
	return errs, nil
}
