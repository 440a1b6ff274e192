package intake

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLock serializes work per deduplication key using a fixed set of
// mutexes. Distinct keys may share a stripe; that only costs throughput.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLock) lock(title, code string) func() {
	h := fnv.New32a()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(code))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
