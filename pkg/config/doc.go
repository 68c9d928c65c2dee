// Package config loads recorder configuration documents.
//
// # Overview
//
// A document declares platform devices and audio recorders, plus optional
// free-standing automations. The loader accepts YAML, JSON, CUE and
// Starlark, checks the document shape against a built-in CUE schema and
// splits it into typed device declarations and raw recorder mappings.
// Field-level validation of recorders happens later, in the compiler.
//
// # Components
//
// Loader: Reads a file or byte slice in any supported format and returns a
// Document. Every failure is reported as an InvalidDocument compile error.
//
// SchemaRegistry: Manages CUE schemas. The built-in "document" schema only
// rejects sections of the wrong shape; unrelated top-level sections pass
// through.
//
// StarlarkEvaluator: Executes Starlark documents with a timeout. A script's
// exported globals become the document sections.
//
// Watcher: Reloads a document whenever its file changes.
//
// # Document Structure
//
// Each section may hold a single mapping or a list of mappings:
//
//	microphone:
//	  - id: mic1
//	    platform: i2s_audio
//	speaker:
//	  id: spk1
//	  platform: i2s_audio
//	audio_recorder:
//	  microphone: mic1
//	  speaker: spk1
//	  on_start:
//	    - logger.log: "recording"
//
// Device keys other than id and platform are kept as platform settings.
//
// # Usage Example
//
//	loader := config.NewLoader(logger, config.WithStarlarkTimeout(5*time.Second))
//
//	doc, err := loader.Load(ctx, "device.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, dev := range doc.Devices {
//	    fmt.Println(dev.ID, dev.Capability)
//	}
package config
