package connpool

import "sync"
import "time"

import "google.golang.org/grpc"
import "google.golang.org/grpc/credentials"


type ConnectionPoolOpts struct {
	MaxConn int
	Creds credentials.TransportCredentials
	DialTimeout time.Duration
	KeepaliveInterval time.Duration
}

type ConnectionPool struct {
	connections sync.Map
	maxConn int
	dialOpts []grpc.DialOption
}


const DefaultKeepaliveInterval = 30 * time.Second
const KeepaliveTimeout = 10 * time.Second
