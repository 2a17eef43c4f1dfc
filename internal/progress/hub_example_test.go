package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExampleHub_Emit demonstrates emitting events and flushing via Close.
func ExampleHub_Emit() {
	var failures int
	sink := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageURLError {
				failures++
			}
		}
		return nil
	})
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 1, MaxBatchWait: time.Second}, sink)

	hub.Emit(Event{
		RunID: UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001")),
		TS:    time.Unix(0, 0),
		Stage: StageURLError,
		URL:   "http://www.test.com/file.pdf",
		Note:  "crawler: invalid url",
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("failures: %d\n", failures)
	// Output:
	// failures: 1
}
