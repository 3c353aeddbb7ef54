package gofib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryListFIFO(t *testing.T) {
	var l entryList
	require.True(t, l.empty())
	require.Nil(t, l.popHead())

	a, b, c := &TimerEntry{}, &TimerEntry{}, &TimerEntry{}
	l.append(a)
	l.append(b)
	l.append(c)
	require.Equal(t, 3, l.len())

	require.Same(t, a, l.popHead())
	require.Same(t, b, l.popHead())
	require.Same(t, c, l.popHead())
	require.True(t, l.empty())
}

func TestEntryListUnlinkMiddle(t *testing.T) {
	var l entryList
	a, b, c := &TimerEntry{}, &TimerEntry{}, &TimerEntry{}
	l.append(a)
	l.append(b)
	l.append(c)

	l.unlink(b)
	require.False(t, b.Pending())
	require.Equal(t, 2, l.len())
	require.Same(t, a, l.popHead())
	require.Same(t, c, l.popHead())

	// b is reusable after unlink
	l.append(b)
	require.Same(t, b, l.popHead())
}

func TestEntryListMisuse(t *testing.T) {
	var l, other entryList
	e := &TimerEntry{}
	l.append(e)
	require.Panics(t, func() { l.append(e) })     // double link
	require.Panics(t, func() { other.unlink(e) }) // wrong list
}
