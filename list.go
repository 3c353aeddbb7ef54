package gofib

// entryList is an intrusive doubly-linked list of timer entries. The
// links live in the entries themselves, so unlinking a known element is
// O(1) and needs no allocation. Pop order is FIFO append order.
type entryList struct {
	head *TimerEntry
	tail *TimerEntry
	n    int
}

func (l *entryList) empty() bool {
	return l.head == nil
}

func (l *entryList) len() int {
	return l.n
}

func (l *entryList) append(e *TimerEntry) {
	if e.list != nil {
		panic("gofib: timer entry already linked")
	}
	e.list = l
	e.prev = l.tail
	e.next = nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.n++
}

func (l *entryList) popHead() *TimerEntry {
	e := l.head
	if e == nil {
		return nil
	}
	l.unlink(e)
	return e
}

func (l *entryList) unlink(e *TimerEntry) {
	if e.list != l {
		panic("gofib: timer entry not on this list")
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.list, e.prev, e.next = nil, nil, nil
	l.n--
}
