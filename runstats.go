package main

import (
	"log"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// logRunStats logs process resource usage at the end of a run, so long
// batches leave a record of their footprint.
func logRunStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	rssMB := float64(0)
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			rssMB = float64(mi.RSS) / 1024 / 1024
		}
	}
	log.Printf("Process stats: RSS %.1f MB, heap %.1f MB, GC cycles %d, goroutines %d",
		rssMB, float64(m.HeapAlloc)/1024/1024, m.NumGC, runtime.NumGoroutine())
}
