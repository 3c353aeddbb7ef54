package gofib

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// FD owns one registered descriptor. The descriptor, its context and
// the bridge that issued it travel together until Close; values must
// not be copied. fd >= 0 exactly while ctx != nil.
type FD struct {
	noCopy

	v   int
	ctx *fdContext
	b   *epollBridge
}

// WrapFd registers an open descriptor with the bridge and returns its
// owning wrapper. Unless alreadyNonblocking, the descriptor is switched
// to O_NONBLOCK first (edge-triggered registration tolerates nothing
// else). On failure everything acquired so far is released and the raw
// descriptor stays with the caller.
func WrapFd(fd int, alreadyNonblocking bool) (*FD, error) {
	b := bridge
	if b == nil {
		panic("gofib: bridge not open")
	}
	if !alreadyNonblocking {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			return nil, newOsError("fcntl", fd, err)
		}
		if _, err = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
			return nil, newOsError("fcntl", fd, err)
		}
	}
	ctx, err := b.register(fd)
	if err != nil {
		return nil, err
	}
	return &FD{v: fd, ctx: ctx, b: b}, nil
}

// Pipe creates a non-blocking pipe and wraps both ends.
func Pipe() (r *FD, w *FD, err error) {
	var p [2]int
	if err = unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, newOsError("pipe2", -1, err)
	}
	if r, err = WrapFd(p[0], true); err != nil {
		unix.Close(p[0])
		unix.Close(p[1])
		return nil, nil, err
	}
	if w, err = WrapFd(p[1], true); err != nil {
		r.Close()
		unix.Close(p[1])
		return nil, nil, err
	}
	return r, w, nil
}

// Fd returns the raw descriptor, -1 after Close.
func (fd *FD) Fd() int {
	return fd.v
}

// Read issues a non-blocking read, parking the calling fiber whenever
// the descriptor has nothing to offer. A zero return is EOF. Once the
// bridge is closed, EAGAIN surfaces instead of parking.
func (fd *FD) Read(buf []byte) (int, error) {
	for {
		n, err := syscall.Read(fd.v, buf)
		if err == nil {
			return n, nil
		}
		switch err {
		case syscall.EINTR:
			// retry without suspending
		case syscall.EAGAIN:
			if !fd.b.wait(fd.ctx) {
				return 0, newOsError("read", fd.v, err)
			}
		default:
			return 0, newOsError("read", fd.v, err)
		}
	}
}

// Write issues a non-blocking write, parking the calling fiber whenever
// the descriptor cannot take bytes. Returns whatever the single
// successful syscall wrote; short writes are the caller's to continue.
func (fd *FD) Write(buf []byte) (int, error) {
	for {
		n, err := syscall.Write(fd.v, buf)
		if err == nil {
			return n, nil
		}
		switch err {
		case syscall.EINTR:
		case syscall.EAGAIN:
			if !fd.b.wait(fd.ctx) {
				return 0, newOsError("write", fd.v, err)
			}
		default:
			return 0, newOsError("write", fd.v, err)
		}
	}
}

// Close deregisters the context and closes the descriptor. Idempotent;
// called again it does nothing. Closing the kernel fd doubles as epoll
// removal (see deregister). Works after CloseBridge too: the context
// slot returns to the issuing bridge's pool.
func (fd *FD) Close() {
	if fd.v < 0 {
		return
	}
	fd.b.deregister(fd.ctx)
	fd.ctx = nil
	syscall.Close(fd.v)
	fd.v = -1
}
