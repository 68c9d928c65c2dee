// Package telemetry provides observability for compile runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and a small event publisher used by watch mode.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
//	logger := tel.Logger.NewComponentLogger("compiler")
//	logger.WithRunID(runID).WithComponentID("mic1").Info("Component resolved")
//
// The compiler stages take a plain zerolog.Logger; use Logger.Zerolog to
// hand one over.
//
// # Tracing
//
// A compile run produces one "compile.run" span with a "compile.component"
// child per component and "compile.<stage>" spans beneath it:
//
//	ic := telemetry.StartOperation(ctx, "resolve", telemetry.AttrComponentID.String(id))
//	err := resolve(ic.Ctx)
//	ic.End(err)
//
// Exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// All metrics live under the configured namespace (recwire by default):
//
//	recwire_compiles_total{status}
//	recwire_compile_duration_seconds{status}
//	recwire_last_compile_timestamp_seconds
//	recwire_components_total{state}
//	recwire_stage_duration_seconds{stage}
//	recwire_component_errors_total{kind}
//	recwire_primitives_built_total{kind}
//	recwire_policy_violations_total{policy,severity}
//	recwire_registered_objects
//
// Recording methods are no-ops when metrics are disabled.
//
// # Events
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Delivery is synchronous unless EventsConfig.EnableAsync is set.
package telemetry
