package rewrite

import "sync"

// futureMap memoizes work per key with first-claim semantics: the
// first caller to claim a key becomes its sole owner and must complete
// the future; everyone else observes the finished result. This is what
// guarantees at-most-one attempt per key even when discovery runs
// concurrently.
type futureMap[T any] struct {
	mu sync.Mutex
	m  map[string]*future[T]
}

type future[T any] struct {
	done chan struct{}
	// Set by the owner before done is closed.
	val T
	err error
}

func newFutureMap[T any]() *futureMap[T] {
	return &futureMap[T]{m: make(map[string]*future[T])}
}

// claim returns the future for key and whether the caller just became
// its owner. An owner must set the result and call complete exactly
// once.
func (fm *futureMap[T]) claim(key string) (*future[T], bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if f, ok := fm.m[key]; ok {
		return f, false
	}
	f := &future[T]{done: make(chan struct{})}
	fm.m[key] = f
	return f, true
}

// get returns the future previously claimed for key.
func (fm *futureMap[T]) get(key string) *future[T] {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.m[key]
}

func (f *future[T]) complete(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

func (f *future[T]) wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// do runs fn under key at most once; concurrent and later callers get
// the memoized result.
func (fm *futureMap[T]) do(key string, fn func() (T, error)) (T, error) {
	f, owner := fm.claim(key)
	if owner {
		f.complete(fn())
	}
	return f.wait()
}
