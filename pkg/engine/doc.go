// Package engine defines the data model shared by every recwire stage.
//
// # Overview
//
// recwire compiles a declarative audio recorder configuration into a wiring
// plan. A document passes through four stages per component:
//
//  1. Structure - validate fields against the schema (pkg/schema, pkg/recorder)
//  2. Relationships - enforce mutual exclusivity groups (pkg/crossfield)
//  3. Resolution - turn symbolic references into handles (pkg/resolver)
//  4. Emission - produce the WiringPlan (pkg/wiring)
//
// Action and condition primitives referenced from automation chains are built
// independently by pkg/actions once their parent recorder is registered.
//
// # Core Types
//
//   - ObjectReference: a symbolic ID plus the capability it must provide
//   - Handle: a registered object with its capability set
//   - TriggerBinding: a hook, its argument signature and its automation chain
//   - WiringPlan: the instance, bindings, parameters, triggers and defines
//   - ExecutionGraph: the compile-order DAG over declarations
//
// # Errors
//
// Every stage reports a *CompileError classified by ErrorKind. Use IsKind or
// errors.Is against a CompileError carrying the kind to branch on failures:
//
//	if engine.IsKind(err, engine.ErrorKindConflictingFields) {
//	    ...
//	}
//
// # Compile Order
//
// DAGBuilder orders declarations so that every referenced object is
// registered before the component that references it. Declarations at the
// same level are sorted by ID, which makes the order reproducible.
package engine
