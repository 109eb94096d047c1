package config

import "runtime"

// defaultCores mirrors the original's ceil(cpu_count()/1) read at process
// start; container cgroup limits are respected via GOMAXPROCS when the Go
// runtime has already been configured for them, so NumCPU is sufficient here.
func defaultCores() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// defaultMaxMem is a conservative fallback when MAX_MEM is not set: 2GiB per
// process, well under typical container defaults.
func defaultMaxMem() int64 {
	return 2 << 30
}
