// Package guard flips the process into test mode when imported for side effects.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "PEDIDOS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
