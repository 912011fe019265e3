// Package regressors implements the model families the pipeline can tune:
// linear, ridge, lasso, elasticnet, knn, cart, forest and gbrt. Every family
// constructs a plain Regressor (Fit/Predict) from a hyperparameter set, so
// the tuning and selection core never dispatches on a concrete model type.
package regressors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/pkg/errors"
)

// Params is one named tuple of algorithm-specific knobs. Values are float64
// throughout; integer-valued knobs (tree counts, neighbor counts) are
// rounded by the family constructor.
type Params map[string]float64

// Get returns the named knob or def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// GetInt returns the named knob rounded to int, or def when absent.
func (p Params) GetInt(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v + 0.5)
	}
	return def
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Key renders the parameter set as a canonical "k=v, k=v" string. Keys are
// sorted, so equal sets always render identically; the selector uses this
// for de-duplication and as the final tie-break.
func (p Params) Key() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return b.String()
}

// Family describes one tunable model family.
type Family struct {
	// Name is the registry key, e.g. "gbrt".
	Name string

	// Complexity names the designated complexity parameter used by the
	// simplicity-favoring selection rules ("" when the family has none).
	Complexity string

	// ComplexityOf maps a parameter set to the proxy value those rules
	// minimize. Monotone in model capacity: more trees, deeper trees,
	// weaker penalties and fewer neighbors all score higher.
	ComplexityOf func(p Params) float64

	// New constructs an unfitted regressor from a parameter set.
	New func(p Params) (model.Regressor, error)

	// DefaultGrid is the family's stock search space, one value list per
	// knob. Callers may substitute their own.
	DefaultGrid map[string][]float64
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Family{}
)

// Register adds a family to the registry. Registering a duplicate name
// panics: families are wired at init time and a collision is a programming
// error.
func Register(f Family) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[f.Name]; dup {
		panic(fmt.Sprintf("regressors: duplicate family %q", f.Name))
	}
	if f.ComplexityOf == nil {
		f.ComplexityOf = func(Params) float64 { return 0 }
	}
	registry[f.Name] = f
}

// Lookup returns the named family.
func Lookup(name string) (Family, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return Family{}, errors.Wrapf(errors.ErrUnknownFamily, "regressors: %q", name)
	}
	return f, nil
}

// Names lists the registered families, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
