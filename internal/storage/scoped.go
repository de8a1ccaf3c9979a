package storage

// Scoped namespaces every key of kv under scope, so one backend can hold the
// records of many clients or sessions.
func Scoped(kv KV, scope string) KV {
	if scope == "" {
		return kv
	}
	return scopedKV{kv: kv, prefix: scope + "/"}
}

type scopedKV struct {
	kv     KV
	prefix string
}

func (s scopedKV) Get(key string) ([]byte, bool, error) { return s.kv.Get(s.prefix + key) }
func (s scopedKV) Set(key string, value []byte) error   { return s.kv.Set(s.prefix+key, value) }
func (s scopedKV) Delete(key string) error              { return s.kv.Delete(s.prefix + key) }
