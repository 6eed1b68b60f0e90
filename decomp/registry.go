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

// Package decomp maps operators to their decompositions and rewrites graphs
// by inlining the decompositions of the operators they call.
//
// A decomposition is a graph computing the same results as an operator
// with simpler operators. A registry is loaded lazily from a bundle of
// decompositions the first time it is used. Callers can register
// additional decompositions at any time.
package decomp

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/gx-org/jit/base/jitlog"
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/build/schema"
	"github.com/gx-org/jit/interp/executor"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
)

// DefaultCleanupRounds is the number of peephole and constant propagation
// rounds run after decompositions have been inlined.
const DefaultCleanupRounds = 2

type (
	// Option configures a registry.
	Option func(*Registry)

	// Registry of decompositions, keyed by operator signature.
	//
	// A registry is safe for concurrent use. Lookups take a read lock
	// and registrations a write lock.
	Registry struct {
		ops           *ops.Registry
		logger        *slog.Logger
		cleanupRounds int

		loadMu  sync.Mutex
		loader  Loader
		loaded  bool
		loadErr error
		// fatal is set when the bundle itself could not be loaded.
		// Errors of single entries of a bundle are not fatal.
		fatal bool

		mu      sync.RWMutex
		graphs  map[string]*graph.Graph
		funcs   map[string]*executor.GraphFunction
		schemas map[string]*schema.FunctionSchema
		// user keeps all the functions registered by callers.
		user []*executor.GraphFunction
	}
)

// WithLoader sets the loader called the first time the registry is used.
func WithLoader(loader Loader) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithOperators sets the operators used to compile bundles and to evaluate
// constants when graphs are cleaned up.
func WithOperators(reg *ops.Registry) Option {
	return func(r *Registry) {
		r.ops = reg
	}
}

// WithLogger sets the logger of the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithCleanupRounds sets the number of cleanup rounds run by rewriters
// created from the registry.
func WithCleanupRounds(rounds int) Option {
	return func(r *Registry) {
		r.cleanupRounds = rounds
	}
}

// NewRegistry returns a registry. Unless another loader is specified,
// the registry loads the builtin decompositions.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ops:           ops.Builtins(),
		logger:        jitlog.Discard(),
		cleanupRounds: DefaultCleanupRounds,
		loader:        BuiltinLoader(),
		graphs:        make(map[string]*graph.Graph),
		funcs:         make(map[string]*executor.GraphFunction),
		schemas:       make(map[string]*schema.FunctionSchema),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = jitlog.Component(r.logger, "decomp")
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of the process, loading the builtin decompositions.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Operators returns the operators used by the registry.
func (r *Registry) Operators() *ops.Registry {
	return r.ops
}

// Load the decompositions of the registry if they have not been loaded yet.
// The loader is called at most once: later calls return the error of
// the first call.
//
// Entries of the bundle which cannot be installed (invalid schema,
// missing function, parameter mismatch) are skipped and reported in the
// returned error. The other entries remain available.
func (r *Registry) Load() error {
	_, err := r.load()
	return err
}

func (r *Registry) load() (fatal bool, err error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.loaded {
		return r.fatal, r.loadErr
	}
	r.loaded = true
	bundle, loadErr := r.loader()
	if loadErr != nil {
		r.loadErr, r.fatal = fmterr.PrefixWith("cannot load decompositions: ")(loadErr), true
		return r.fatal, r.loadErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entryErrs, bundleErr := r.loadBundle(bundle)
	if bundleErr != nil {
		r.loadErr, r.fatal = bundleErr, true
		return r.fatal, r.loadErr
	}
	for _, entryErr := range multierr.Errors(entryErrs) {
		r.logger.Warn("skipping decomposition", "error", entryErr)
	}
	r.loadErr = entryErrs
	return r.fatal, r.loadErr
}

// mustLoad loads the registry. A bundle which cannot be loaded is
// a bug in the JIT or in the loader: it panics.
func (r *Registry) mustLoad() {
	if fatal, err := r.load(); fatal {
		panic(fmterr.Internal(err))
	}
}

// install adds a decomposition to the registry. The caller must hold
// the write lock.
func (r *Registry) install(s *schema.FunctionSchema, g *graph.Graph, fn *executor.GraphFunction) {
	sig := s.Signature()
	r.graphs[sig] = g
	r.funcs[sig] = fn
	r.schemas[sig] = s
}

func (r *Registry) newFunction(s *schema.FunctionSchema, g *graph.Graph) *executor.GraphFunction {
	return executor.New(s.QualifiedName(), g,
		executor.WithMode(executor.ModeSimple),
		executor.WithOperators(r.ops),
	)
}

// Decomposition returns the decomposition of an operator.
// The schema must match exactly the schema of a registered decomposition.
func (r *Registry) Decomposition(s *schema.FunctionSchema) (*graph.Graph, bool) {
	r.mustLoad()
	sig := s.Signature()
	r.logger.Debug("trying to find schema", "schema", sig)
	r.mu.RLock()
	g, ok := r.graphs[sig]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("could not find schema", "schema", sig)
	}
	return g, ok
}

// DecompositionFunction returns the function executing the decomposition
// of an operator. The function is set to run in simple mode.
func (r *Registry) DecompositionFunction(s *schema.FunctionSchema) (*executor.GraphFunction, bool) {
	r.mustLoad()
	r.mu.RLock()
	fn, ok := r.funcs[s.Signature()]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	fn.SetInitialExecutionMode(executor.ModeSimple)
	return fn, true
}

// Register the decomposition of an operator, replacing any decomposition
// previously registered for the same signature. The registry keeps the
// decomposition for its whole lifetime.
func (r *Registry) Register(s *schema.FunctionSchema, g *graph.Graph) {
	r.mustLoad()
	r.mu.Lock()
	defer r.mu.Unlock()
	fn := r.newFunction(s, g)
	r.user = append(r.user, fn)
	r.install(s, g, fn)
	r.logger.Debug("registered decomposition", "schema", s.Signature())
}

// DecompositionExecutor returns the function executing the decomposition
// of the operator given by a schema literal. The operator must exist and
// have a decomposition: otherwise, an internal error is returned.
func (r *Registry) DecompositionExecutor(literal string) (*executor.GraphFunction, error) {
	op, err := r.ops.ForLiteral(literal)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	fn, ok := r.DecompositionFunction(op.Schema)
	if !ok {
		return nil, fmterr.Internalf("no decomposition registered for %s", op.Schema.Signature())
	}
	return fn, nil
}

// Signatures returns the sorted signatures of all the decompositions.
func (r *Registry) Signatures() []string {
	r.mustLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()
	sigs := maps.Keys(r.graphs)
	slices.Sort(sigs)
	return sigs
}

// Schema returns the schema of a registered decomposition given its signature.
func (r *Registry) Schema(sig string) (*schema.FunctionSchema, bool) {
	r.mustLoad()
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[sig]
	return s, ok
}
