package safe

import (
	"RTChat/logger"
)

// Go starts a goroutine that recovers from panic, so a misbehaving
// handler or pump cannot crash the whole gateway process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
