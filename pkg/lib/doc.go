// Package lib provides a Go SDK to run use-after-free reproduction targets
// programmatically.
//
// It runs the same sessions as the uafrepro CLI: every target is a
// pre-provisioned container reachable over SSH, its commands run in order in
// a single session and every command output is classified by the detector
// named by the target. The per-target verdicts are returned as a [Report].
//
// # Quick Start
//
//	client, err := lib.New(lib.Config{Echo: os.Stdout})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	targets, err := client.LoadTargets(ctx, "config/docker.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := client.Run(ctx, targets, &lib.RunOpts{JoinTimeout: 30 * time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range report.Rows {
//	    fmt.Printf("%d %s %s\n", row.Index, row.Result.ProjectName, row.Result.Status)
//	}
//
// # Detectors
//
// The built-in detectors are listed by [Client.Detectors]. Custom detectors
// are registered by name with [Config].Detectors and referenced from the
// target Detector field:
//
//	client, _ := lib.New(lib.Config{
//	    Detectors: map[string]lib.DetectorFunc{
//	        "freesentry": func(stdout, _ string, _ lib.Target) (bool, error) {
//	            return strings.Contains(stdout, "FREESENTRY: UAF"), nil
//	        },
//	    },
//	})
//
// # Error Handling
//
// Errors can be inspected with [errors.Is]:
//
//   - [ErrNotValid]: Invalid targets, unknown detectors or options.
//   - [ErrNotFound]: Missing targets or upload file.
//   - [ErrConnection]: A session could not be opened (on [Result].Err).
//   - [ErrDetector]: A detector could not classify an output (on [Result].Err).
//   - [ErrTimeout]: A session was cut by the join deadline (on [Result].Err).
//
// A timed out or failed session is not a [Client.Run] error, it is reported
// in its row with the verdict folded so far.
package lib
