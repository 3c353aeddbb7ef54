package main

import (
	"fmt"
	"time"

	"github.com/shaovie/gofib"
)

// Two fibers pump 512MiB through a pipe; every stall is a fiber
// suspension, not a blocked thread.
func main() {
	r, err := gofib.NewReactor()
	if err != nil {
		panic(err.Error())
	}
	if err = gofib.OpenBridge(r); err != nil {
		panic(err.Error())
	}
	defer gofib.CloseBridge()

	rd, wr, err := gofib.Pipe()
	if err != nil {
		panic(err.Error())
	}

	const msgCount = 131072
	const msgSize = 4096

	start := time.Now()
	r.Spawn(func() {
		buf := make([]byte, msgSize)
		for i := 0; i < msgCount; i++ {
			if _, err := wr.Write(buf); err != nil {
				panic(err.Error())
			}
		}
		wr.Close()
	})
	r.Spawn(func() {
		buf := make([]byte, msgSize)
		var total int64
		for {
			n, err := rd.Read(buf)
			if err != nil {
				panic(err.Error())
			}
			if n == 0 {
				break
			}
			total += int64(n)
		}
		rd.Close()
		fmt.Printf("read %d MiB in %s, %d suspensions\n",
			total>>20, time.Since(start), gofib.SuspensionCount())
	})
	if err = r.Run(); err != nil {
		panic(err.Error())
	}
}
