// Package compiler drives a configuration document through validation,
// dependency resolution and wiring emission.
//
// Compilation runs in two phases. Every recorder declaration is validated
// first, structurally and then against its cross-field rules. Validated
// recorders are then ordered by the references they make and, in that
// order, resolved against the object registry and emitted as wiring plans.
// Each recorder moves through a small state machine:
//
//	declared -> validated -> resolved -> emitted
//	    \___________\___________\______-> failed
//
// A failing recorder does not stop its siblings unless Options.HaltOnError
// is set. Once every recorder has been emitted, automation chains on hooks
// and in the automations section are scanned for recorder actions and
// conditions.
//
// Basic usage:
//
//	doc, err := config.NewLoader(logger).Load(ctx, "device.yaml")
//	if err != nil {
//		return err
//	}
//	res, err := compiler.New(compiler.Options{}, logger).Compile(ctx, doc)
//	if err != nil {
//		return err
//	}
//	for _, plan := range res.Plans {
//		fmt.Println(plan.Instance.ID, plan.ID)
//	}
package compiler
