package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/recwire/pkg/telemetry"
)

// Example_events shows subscribing to compile events.
func Example_events() {
	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		panic(err)
	}

	publisher.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s [%s] %s\n", e.Type, e.Level, e.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = publisher.PublishCompileStarted("run-1", "kitchen.yaml", 2)
	_ = publisher.PublishComponentFailed("run-1", "mic2", "ConflictingOptions", "auto_gain and volume_multiplier are exclusive")
	_ = publisher.PublishCompileCompleted("run-1", "partial", 1, 1, 12*time.Millisecond)

	// Output:
	// component.failed [error] Component mic2 failed: auto_gain and volume_multiplier are exclusive
	// compile.completed [warning] Compile partial: 1 emitted, 1 failed
}

// Example_operation shows timing a compile stage.
func Example_operation() {
	tel := telemetry.Nop()
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "resolve", telemetry.AttrComponentID.String("audio_recorder"))
	ic.Logger.Debug("resolving references")
	ic.End(nil)

	fmt.Println(ic.Timer.Duration() >= 0)
	// Output: true
}
