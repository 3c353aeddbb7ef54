package gofib

import (
	"syscall"
	"unsafe"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

var (
	notifyV      int64 = 1
	notifyWriteV       = (*(*[8]byte)(unsafe.Pointer(&notifyV)))[:]
)

// Notify wakes a reactor blocked in epoll_wait from outside its
// goroutine. Backed by an eventfd the bridge keeps in its interest set.
type Notify struct {
	efd        int
	notifyOnce atomic.Int32 // collapses duplicate wakeups between drains
}

func newNotify() (*Notify, error) {
	// since Linux 2.6.27
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, newOsError("eventfd", -1, err)
	}
	return &Notify{efd: fd}, nil
}

// Notify is thread-safe.
func (nt *Notify) Notify() {
	if !nt.notifyOnce.CompareAndSwap(0, 1) {
		return
	}
	for {
		n, err := syscall.Write(nt.efd, notifyWriteV) // man 2 eventfd
		if n == 8 || err == syscall.EAGAIN {
			return
		}
		if err == syscall.EINTR {
			continue
		}
		return
	}
}

// drain consumes pending wakeups. Runs on the reactor goroutine only.
func (nt *Notify) drain() {
	var tmp [8]byte
	for {
		_, err := syscall.Read(nt.efd, tmp[:])
		if err == syscall.EINTR {
			continue
		}
		break
	}
	nt.notifyOnce.Store(0)
}

func (nt *Notify) close() {
	if nt.efd >= 0 {
		syscall.Close(nt.efd)
		nt.efd = -1
	}
}
