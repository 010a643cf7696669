package wal

import "time"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/grsfs/pkg/logger"


//=========================================== Write Ahead Log


var Log = clog.NewCustomLog(NAME)

/*
	Write Ahead Log
		1.) open the db at the given path
		2.) create the journal and stats buckets if they do not already exist

	maxEntries bounds the journal, 0 keeps everything
*/

func NewWAL(dbPath string, maxEntries int) (*WAL, error) {
	db, openErr := bolt.Open(dbPath, 0600, &bolt.Options{ Timeout: 1 * time.Second })
	if openErr != nil { return nil, openErr }

	transaction := func(tx *bolt.Tx) error {
		for _, bucket := range []string{ Journal, Stats } {
			_, createErr := tx.CreateBucketIfNotExists([]byte(bucket))
			if createErr != nil { return createErr }
		}

		return nil
	}

	bucketErr := db.Update(transaction)
	if bucketErr != nil { 
		db.Close()
		return nil, bucketErr
	}

	return &WAL{ 
		DBFile: dbPath,
		DB: db,
		MaxEntries: maxEntries,
	}, nil
}

func (wal *WAL) Close() error {
	return wal.DB.Close()
}
