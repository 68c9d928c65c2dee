// Package policy evaluates wiring plans with Open Policy Agent (OPA).
//
// Every plan the emitter produces is passed to Engine.EvaluatePlan before it
// is accepted. A policy is a Rego module whose deny set lists violations;
// each member is a message string or an object with "message" and optional
// "severity" and "field" keys. Violations with error or critical severity
// reject the plan, the rest become plan diagnostics.
//
// # Input
//
// Policies see the plan with its JSON field names under input.plan and the
// evaluation context under input.context:
//
//	package site.speaker
//
//	has_speaker if {
//	    some b in input.plan.bindings
//	    b.field == "speaker"
//	}
//
//	deny contains violation if {
//	    not has_speaker
//	    violation := {"message": "a speaker is required", "severity": "error"}
//	}
//
// # Built-in Policies
//
//  1. volume-clipping - volume_multiplier above 4 (warning)
//  2. output-binding - no speaker or media player bound (info)
//  3. gain-stacking - auto_gain of 24dBFS or more with volume_multiplier above 1 (warning)
//
// # Loading
//
// Loader reads .rego and .json policies from files and directories, and
// Watch reloads them on change:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return eng.AddPolicies(ctx, policies)
//	})
package policy
