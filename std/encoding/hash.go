package encoding

import (
	"bytes"
	"hash"
	"sync"

	"github.com/cespare/xxhash"
)

// xxHashObj bundles a reusable xxhash state with a scratch buffer so
// Component/Name hashing does not allocate on the hot table-lookup path.
type xxHashObj struct {
	hash   hash.Hash64
	buffer bytes.Buffer
}

type xxHashObjPool struct {
	pool sync.Pool
}

// Get returns a reset hash state ready for use.
func (p *xxHashObjPool) Get() *xxHashObj {
	obj := p.pool.Get().(*xxHashObj)
	obj.hash.Reset()
	obj.buffer.Reset()
	return obj
}

// Put returns the state to the pool.
func (p *xxHashObjPool) Put(obj *xxHashObj) {
	p.pool.Put(obj)
}

var xxHashPool = xxHashObjPool{pool: sync.Pool{
	New: func() any { return &xxHashObj{hash: xxhash.New()} },
}}
