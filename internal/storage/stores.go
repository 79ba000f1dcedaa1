package storage

// Stores holds every store sharing one database
type Stores struct {
	DB          *PebbleDB
	LedgerStore *LedgerStore
	VoteStore   *VoteStore
}

// NewStores creates all stores using the given database
func NewStores(db *PebbleDB) *Stores {
	return &Stores{
		DB:          db,
		LedgerStore: NewLedgerStore(db),
		VoteStore:   NewVoteStore(db),
	}
}

// Close closes the database
func (s *Stores) Close() error {
	return s.DB.Close()
}
