package store

// Ledger maps a stored filename to the fingerprint of its content.
// A filename is bound to at most one fingerprint for the lifetime of the
// ledger; the store renames content rather than rebinding a name.
type Ledger struct {
	entries map[string]string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// Lookup returns the fingerprint recorded for filename.
func (l *Ledger) Lookup(filename string) (string, bool) {
	hash, ok := l.entries[filename]
	return hash, ok
}

// Record binds filename to hash. An existing binding is left untouched.
func (l *Ledger) Record(filename, hash string) {
	if _, ok := l.entries[filename]; ok {
		return
	}
	l.entries[filename] = hash
}

// Len returns the number of recorded filenames.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the ledger contents.
func (l *Ledger) Entries() map[string]string {
	out := make(map[string]string, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}
