package wal

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/grsfs/pkg/stats"


//=========================================== Write Ahead Log Stats Ops


func (wal *WAL) SetStat(statObj stats.Stats) error {
	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Stats))

		value, encErr := stats.EncodeStatObjectToBytes(statObj)
		if encErr != nil { return encErr }

		return bucket.Put([]byte(statObj.Timestamp), value)
	}

	return wal.DB.Update(transaction)
}

func (wal *WAL) GetStats() ([]stats.Stats, error) {
	var statsArr []stats.Stats
	
	transaction := func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(Stats)).Cursor()

		for key, val := cursor.First(); key != nil; key, val = cursor.Next() {
			statObj, decErr := stats.DecodeBytesToStatObject(val)
			if decErr != nil { return decErr }

			statsArr = append(statsArr, *statObj)
		}

		return nil
	}

	getErr := wal.DB.View(transaction)
	if getErr != nil { return nil, getErr }

	return statsArr, nil
}

/*
	Delete Stats
		keep only the newest MaxStats entries, keys are timestamps so cursor order is age order
*/

func (wal *WAL) DeleteStats() error {	
	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Stats))
		
		numKeysToDelete := bucket.Stats().KeyN - MaxStats
		if numKeysToDelete <= 0 { return nil }

		var stale [][]byte
		cursor := bucket.Cursor()
		for key, _ := cursor.First(); key != nil && len(stale) < numKeysToDelete; key, _ = cursor.Next() {
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
