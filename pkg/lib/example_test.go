package lib_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/g8/uafrepro/pkg/lib"
)

// This example shows how to register a custom detector next to the built-in ones.
func Example_detectors() {
	client, err := lib.New(lib.Config{
		Detectors: map[string]lib.DetectorFunc{
			"freesentry": func(stdout, _ string, _ lib.Target) (bool, error) {
				return strings.Contains(stdout, "FREESENTRY: UAF"), nil
			},
		},
	})
	if err != nil {
		panic(err)
	}

	for _, name := range client.Detectors() {
		fmt.Println(name)
	}

	// Output:
	// address_sanitizer
	// address_sanitizer_callback
	// dangsan
	// dangsan_callback
	// dangsan_relaxed
	// freesentry
	// substring
	// two_marker
	// two_marker_relaxed
}

// This example shows how to run the targets of a targets file and print the verdicts.
func Example_run() {
	ctx := context.Background()

	client, err := lib.New(lib.Config{Echo: os.Stdout})
	if err != nil {
		panic(err)
	}

	targets, err := client.LoadTargets(ctx, "config/docker.json")
	if err != nil {
		panic(err)
	}

	report, err := client.Run(ctx, targets, &lib.RunOpts{JoinTimeout: time.Minute})
	if err != nil {
		panic(err)
	}

	for _, row := range report.Rows {
		fmt.Printf("%d %s %s\n", row.Index, row.Result.ProjectName, row.Result.Status)
	}
}
