package wal

import bolt "go.etcd.io/bbolt"


type WAL struct {
	DBFile string
	DB *bolt.DB
	MaxEntries int
}


const NAME = "WAL"
const Journal = "journal"
const Stats = "stats"
const MaxStats = 5
