//go:build !linux

package sink

import "errors"

// pinToCPU is unsupported outside Linux; WithCPUAffinity degrades to a
// logged no-op there.
func pinToCPU(cpu int) error {
	return errors.New("sink: CPU affinity pinning is only supported on linux")
}
