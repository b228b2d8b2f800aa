//go:build linux

package ordermanager

import "golang.org/x/sys/unix"

// setCPUAffinity pins the calling OS thread to the given core list.
// Failures are swallowed: affinity is an optimization, never a
// correctness requirement.
func setCPUAffinity(cores []int) {
	if len(cores) == 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		if c >= 0 {
			set.Set(c)
		}
	}
	_ = unix.SchedSetaffinity(0, &set)
}
