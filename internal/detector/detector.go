package detector

import (
	"fmt"
	"sort"

	"github.com/g8/uafrepro/internal/model"
)

// Func classifies the output of one command as defect detected or not.
// It must not mutate the target.
type Func func(stdout, stderr string, target model.Target) (bool, error)

// Registry maps detector names to detector functions.
type Registry map[string]Func

// DefaultRegistry contains the built-in detectors.
var DefaultRegistry = Registry{
	"address_sanitizer":          AddressSanitizer,
	"address_sanitizer_callback": AddressSanitizer,
	"dangsan":                    DangSan,
	"dangsan_callback":           DangSan,
	"dangsan_relaxed":            DangSanRelaxed,
	"substring":                  Substring,
	"two_marker":                 TwoMarker,
	"two_marker_relaxed":         TwoMarkerRelaxed,
}

// Lookup returns the detector registered under name.
func (r Registry) Lookup(name string) (Func, error) {
	fn, ok := r[name]
	if !ok || fn == nil {
		return nil, fmt.Errorf("unknown detector %q: %w", name, model.ErrNotValid)
	}
	return fn, nil
}

// Names returns the registered detector names sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve checks that every target detector is registered.
func (r Registry) Resolve(targets []model.Target) (map[string]Func, error) {
	fns := make(map[string]Func, len(targets))
	for _, t := range targets {
		fn, err := r.Lookup(t.Detector)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", t.ProjectName, err)
		}
		fns[t.ProjectName] = fn
	}
	return fns, nil
}
