package engine_test

import (
	"errors"
	"fmt"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Example_compileOrder shows how declarations are ordered so that devices
// are registered before the recorder that references them.
func Example_compileOrder() {
	decls := []engine.Declaration{
		{
			ID:   "kitchen_recorder",
			Kind: "audio_recorder",
			References: []engine.FieldReference{
				{Field: "microphone", ID: "mic1"},
				{Field: "media_player", ID: "player"},
			},
		},
		{ID: "player", Kind: "media_player"},
		{ID: "mic1", Kind: "microphone"},
	}

	graph, err := engine.NewDAGBuilder().BuildGraph(decls)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for i, level := range graph.Levels {
		fmt.Printf("level %d: %v\n", i, level)
	}

	// Output:
	// level 0: [mic1 player]
	// level 1: [kitchen_recorder]
}

// Example_errorKinds shows how callers branch on compile error kinds.
func Example_errorKinds() {
	err := fmt.Errorf("compile rec: %w",
		engine.NewConflictingFieldsError("output", []string{"speaker", "media_player"}).
			WithComponent("rec"))

	fmt.Println(engine.KindOf(err))
	fmt.Println(errors.Is(err, &engine.CompileError{Kind: engine.ErrorKindConflictingFields}))
	fmt.Println(engine.IsKind(err, engine.ErrorKindUnknownReference))

	// Output:
	// ConflictingFields
	// true
	// false
}
