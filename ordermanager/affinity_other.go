//go:build !linux

package ordermanager

// setCPUAffinity is a no-op on platforms without a scheduler-affinity
// syscall exposed through golang.org/x/sys/unix.
func setCPUAffinity(cores []int) {}
