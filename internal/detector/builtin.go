package detector

import (
	"fmt"
	"strings"

	"github.com/g8/uafrepro/internal/model"
)

const (
	// AddressSanitizerMarker is the AddressSanitizer report signature for use-after-free.
	AddressSanitizerMarker = "heap-use-after-free"
	// DangSanPositiveMarker is printed by the DangSan reproduction when the UAF is caught.
	DangSanPositiveMarker = "G8 UAF DETECTED!"
	// DangSanNegativeMarker is printed by the DangSan reproduction when the UAF is missed.
	DangSanNegativeMarker = "G8 UAF NO!"
)

// AddressSanitizer detects AddressSanitizer heap-use-after-free reports on stdout or stderr.
func AddressSanitizer(stdout, stderr string, _ model.Target) (bool, error) {
	return contains(stdout, stderr, AddressSanitizerMarker), nil
}

// DangSan classifies the DangSan reproduction stdout, output without any marker is a fault.
func DangSan(stdout, _ string, _ model.Target) (bool, error) {
	return twoMarker(stdout, DangSanPositiveMarker, DangSanNegativeMarker, true)
}

// DangSanRelaxed is DangSan but output without the negative marker counts as detected.
func DangSanRelaxed(stdout, _ string, _ model.Target) (bool, error) {
	return twoMarker(stdout, DangSanPositiveMarker, DangSanNegativeMarker, false)
}

// Substring detects the target positive marker on stdout or stderr.
func Substring(stdout, stderr string, target model.Target) (bool, error) {
	if target.Markers.Positive == "" {
		return false, fmt.Errorf("substring detector requires a positive marker: %w", model.ErrNotValid)
	}
	return contains(stdout, stderr, target.Markers.Positive), nil
}

// TwoMarker classifies stdout using the target markers, output without any marker is a fault.
func TwoMarker(stdout, _ string, target model.Target) (bool, error) {
	if err := checkMarkers(target.Markers); err != nil {
		return false, err
	}
	return twoMarker(stdout, target.Markers.Positive, target.Markers.Negative, true)
}

// TwoMarkerRelaxed is TwoMarker but output without the negative marker counts as detected.
func TwoMarkerRelaxed(stdout, _ string, target model.Target) (bool, error) {
	if err := checkMarkers(target.Markers); err != nil {
		return false, err
	}
	return twoMarker(stdout, target.Markers.Positive, target.Markers.Negative, false)
}

func checkMarkers(m model.Markers) error {
	if m.Positive == "" || m.Negative == "" {
		return fmt.Errorf("two marker detector requires positive and negative markers: %w", model.ErrNotValid)
	}
	return nil
}

func contains(stdout, stderr, marker string) bool {
	return strings.Contains(stdout, marker) || strings.Contains(stderr, marker)
}

// twoMarker gives precedence to the positive marker when both are present.
func twoMarker(out, positive, negative string, strict bool) (bool, error) {
	switch {
	case strings.Contains(out, positive):
		return true, nil
	case strings.Contains(out, negative):
		return false, nil
	case strict:
		return false, fmt.Errorf("neither %q nor %q found: %w", positive, negative, model.ErrAmbiguousOutput)
	default:
		return true, nil
	}
}
