// Package runtime contains goroutine lifecycle helpers.
package runtime

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/LerianStudio/lib-saga/saga/log"
)

// SafeGo launches fn on a new goroutine and converts a panic into an error
// log instead of crashing the process. The name labels the goroutine in
// log output.
func SafeGo(logger log.Logger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if logger == nil {
				fmt.Fprintf(os.Stderr, "goroutine %s panic: %v\n%s", name, r, debug.Stack())

				return
			}

			logger.Log(context.Background(), log.LevelError,
				"goroutine panic recovered",
				log.String("goroutine", name),
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
		}()

		fn()
	}()
}
