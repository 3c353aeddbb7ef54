package main

import (
	"fmt"
	"time"

	"github.com/shaovie/gofib"
)

// A handful of fibers sleeping on the cascading wheel.
func main() {
	r, err := gofib.NewReactor(gofib.TimerResolution(time.Millisecond))
	if err != nil {
		panic(err.Error())
	}
	for i := 1; i <= 5; i++ {
		i := i
		r.Spawn(func() {
			start := time.Now()
			if err := r.Sleep(time.Duration(i) * 10 * time.Millisecond); err != nil {
				panic(err.Error())
			}
			fmt.Printf("fiber %d woke after %s\n", i, time.Since(start))
		})
	}
	if err = r.Run(); err != nil {
		panic(err.Error())
	}
}
