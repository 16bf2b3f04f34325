// Package app wires the batch pipeline together from a loaded
// configuration.
//
// # Initialization Flow
//
//	1. Initialize logging (unless a logger is supplied)
//	2. Create the output, logs and processed directories
//	3. Initialize OpenTelemetry tracing and Prometheus-backed metrics
//	4. Open the experiment store and register material aliases
//	5. Open the raw export archive
//	6. Build the batch runner
//
// # Usage
//
//	cfg, err := config.Load()
//	...
//	application, err := app.New(ctx, cfg, app.Options{})
//	if err != nil {
//	    return err
//	}
//	defer application.Close(ctx)
//	report, err := application.Run(ctx)
//
// Close writes the metrics textfile when telemetry.metrics_file is set.
// The package never calls os.Exit; the commands decide the exit status.
package app
