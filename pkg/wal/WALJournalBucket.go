package wal

import "errors"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/grsfs/pkg/operation"


//=========================================== Write Ahead Log Journal Ops


var ErrMissingStep = errors.New("journal entry has no step")


/*
	Append:
		1.) key the envelope by its step
		2.) put it in the journal bucket
		3.) trim everything older than the retention window in the same transaction
*/

func (wal *WAL) Append(env *operation.Envelope) error {
	step, ok := env.Step()
	if ! ok { return ErrMissingStep }

	value, encErr := operation.EncodeEnvelope(env)
	if encErr != nil { return encErr }

	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Journal))

		putErr := bucket.Put(ConvertIntToBytes(int64(step)), value)
		if putErr != nil { return putErr }

		if wal.MaxEntries <= 0 || step <= uint64(wal.MaxEntries) { return nil }
		return trimBefore(bucket, step - uint64(wal.MaxEntries) + 1)
	}

	return wal.DB.Update(transaction)
}

func (wal *WAL) Read(step uint64) (*operation.Envelope, error) {
	var env *operation.Envelope

	transaction := func(tx *bolt.Tx) error {
		val := tx.Bucket([]byte(Journal)).Get(ConvertIntToBytes(int64(step)))
		if val == nil { return nil }

		decoded, decErr := operation.DecodeEnvelope(val)
		if decErr != nil { return decErr }

		env = decoded
		return nil
	}

	readErr := wal.DB.View(transaction)
	if readErr != nil { return nil, readErr }

	return env, nil
}

/*
	Get Range
		entries with from <= step <= to, in step order
*/

func (wal *WAL) GetRange(from uint64, to uint64) ([]*operation.Envelope, error) {
	var entries []*operation.Envelope

	transaction := func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(Journal)).Cursor()
		
		for key, val := cursor.Seek(ConvertIntToBytes(int64(from))); key != nil; key, val = cursor.Next() {
			if uint64(ConvertBytesToInt(key)) > to { break }

			env, decErr := operation.DecodeEnvelope(val)
			if decErr != nil { return decErr }

			entries = append(entries, env)
		}

		return nil
	}

	rangeErr := wal.DB.View(transaction)
	if rangeErr != nil { return nil, rangeErr }

	return entries, nil
}

func (wal *WAL) GetLatest() (*operation.Envelope, error) {
	return wal.edge(func(cursor *bolt.Cursor) ([]byte, []byte) { return cursor.Last() })
}

func (wal *WAL) GetEarliest() (*operation.Envelope, error) {
	return wal.edge(func(cursor *bolt.Cursor) ([]byte, []byte) { return cursor.First() })
}

func (wal *WAL) GetTotal() (int, error) {
	total := 0

	transaction := func(tx *bolt.Tx) error {
		total = tx.Bucket([]byte(Journal)).Stats().KeyN
		return nil
	}

	totalErr := wal.DB.View(transaction)
	if totalErr != nil { return 0, totalErr }

	return total, nil
}

/*
	Truncate After
		drop every entry above step, used when the clock is rewound to its checkpoint on startup
*/

func (wal *WAL) TruncateAfter(step uint64) error {
	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Journal))
		cursor := bucket.Cursor()

		var stale [][]byte
		for key, _ := cursor.Seek(ConvertIntToBytes(int64(step + 1))); key != nil; key, _ = cursor.Next() {
			stale = append(stale, append([]byte{}, key...))
		}

		for _, key := range stale {
			delErr := bucket.Delete(key)
			if delErr != nil { return delErr }
		}

		return nil
	}

	return wal.DB.Update(transaction)
}

func (wal *WAL) edge(position func(*bolt.Cursor) ([]byte, []byte)) (*operation.Envelope, error) {
	var env *operation.Envelope

	transaction := func(tx *bolt.Tx) error {
		key, val := position(tx.Bucket([]byte(Journal)).Cursor())
		if key == nil { return nil }

		decoded, decErr := operation.DecodeEnvelope(val)
		if decErr != nil { return decErr }

		env = decoded
		return nil
	}

	edgeErr := wal.DB.View(transaction)
	if edgeErr != nil { return nil, edgeErr }

	return env, nil
}

func trimBefore(bucket *bolt.Bucket, step uint64) error {
	cursor := bucket.Cursor()

	var stale [][]byte
	for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
		if uint64(ConvertBytesToInt(key)) >= step { break }
		stale = append(stale, append([]byte{}, key...))
	}

	for _, key := range stale {
		delErr := bucket.Delete(key)
		if delErr != nil { return delErr }
	}

	return nil
}
