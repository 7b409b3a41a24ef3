package state

import "loanchain/storage"

// overlay buffers writes on top of a base store. Reads fall through to the
// base for untouched keys; commit flushes the buffered writes in one pass.
type overlay struct {
	base    KV
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlay(base KV) *overlay {
	return &overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *overlay) Put(key []byte, value []byte) error {
	k := string(key)
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[k] = buf
	delete(o.deletes, k)
	return nil
}

func (o *overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, deleted := o.deletes[k]; deleted {
		return nil, storage.ErrKeyNotFound
	}
	if value, ok := o.writes[k]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	return o.base.Get(key)
}

func (o *overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

func (o *overlay) commit() error {
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
