// Package pushid generates 20-character, chronologically sortable record keys in the
// same alphabet and layout as Firebase push keys: 8 timestamp characters followed by
// 12 random characters.
package pushid

import (
	"crypto/rand"
	"sync"
	"time"
)

const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// Len is the length of every generated key.
const Len = 20

// Generator produces keys that sort in generation order, including keys generated
// within the same millisecond.
type Generator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastMs   int64
	lastRand [12]byte
}

// New returns a Generator using the wall clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock returns a Generator driven by now. Used in tests.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns a new unique key.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms == g.lastMs {
		// Same millisecond: bump the random suffix so ordering still holds.
		i := len(g.lastRand) - 1
		for ; i >= 0 && g.lastRand[i] == 63; i-- {
			g.lastRand[i] = 0
		}
		if i >= 0 {
			g.lastRand[i]++
		}
	} else {
		var b [12]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("pushid: crypto/rand failed: " + err.Error())
		}
		for i := range b {
			g.lastRand[i] = b[i] % 64
		}
		g.lastMs = ms
	}

	var out [Len]byte
	ts := ms
	for i := 7; i >= 0; i-- {
		out[i] = alphabet[ts%64]
		ts /= 64
	}
	for i, r := range g.lastRand {
		out[8+i] = alphabet[r]
	}
	return string(out[:])
}

// Timestamp decodes the creation time embedded in a key. ok is false for keys that were
// not produced by a Generator.
func Timestamp(key string) (t time.Time, ok bool) {
	if len(key) != Len {
		return time.Time{}, false
	}
	var ms int64
	for i := 0; i < 8; i++ {
		idx := indexOf(key[i])
		if idx < 0 {
			return time.Time{}, false
		}
		ms = ms*64 + int64(idx)
	}
	return time.UnixMilli(ms), true
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
