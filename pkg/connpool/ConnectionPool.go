package connpool

import "errors"

import "google.golang.org/grpc"
import "google.golang.org/grpc/backoff"
import "google.golang.org/grpc/connectivity"
import "google.golang.org/grpc/credentials/insecure"
import "google.golang.org/grpc/keepalive"


//=========================================== Connection Pool


var ErrMaxConnections = errors.New("max connections reached")


/*
	initialize the connection pool

	the purpose of the connection pool is to reuse connections once they have been made, minimizing overhead
	for reconnecting to a peer every time an rpc is made. grpc multiplexes calls over one http/2 connection
	and keepalive pings hold it open between calls

	the pool has the following structure:
		{
			[key: host:port]: Array<connections>
		}
*/

func NewConnectionPool(opts ConnectionPoolOpts) *ConnectionPool {
	creds := opts.Creds
	if creds == nil { creds = insecure.NewCredentials() }

	keepaliveInterval := opts.KeepaliveInterval
	if keepaliveInterval <= 0 { keepaliveInterval = DefaultKeepaliveInterval }

	maxConn := opts.MaxConn
	if maxConn <= 0 { maxConn = 1 }

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time: keepaliveInterval,
			Timeout: KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}

	if opts.DialTimeout > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.DefaultConfig,
			MinConnectTimeout: opts.DialTimeout,
		}))
	}

	return &ConnectionPool{
		maxConn: maxConn,
		dialOpts: dialOpts,
	}
}

/*
	Get Connection:
		1.) load connections for the particular address
		2.) if the address was loaded from the thread safe map:
			return the first connection that has not been shut down, preferring one that is ready
			if every pooled connection is shut down and the pool is full --> throw max connections error
		3.) otherwise create a new grpc connection, append it under the address and return it
*/

func (cp *ConnectionPool) GetConnection(addr string) (*grpc.ClientConn, error) {
	connections, loaded := cp.connections.Load(addr)
	if loaded {
		var usable *grpc.ClientConn
		live := 0

		for _, conn := range connections.([]*grpc.ClientConn) {
			state := conn.GetState()
			if state == connectivity.Shutdown { continue }

			live++
			if state == connectivity.Ready { return conn, nil }
			if usable == nil { usable = conn }
		}

		if usable != nil { return usable, nil }
		if live >= cp.maxConn { return nil, ErrMaxConnections }
	}

	newConn, connErr := grpc.Dial(addr, cp.dialOpts...)
	if connErr != nil { return nil, connErr }

	existing, loaded := cp.connections.LoadOrStore(addr, []*grpc.ClientConn{ newConn })
	if loaded {
		var kept []*grpc.ClientConn
		for _, conn := range existing.([]*grpc.ClientConn) {
			if conn.GetState() != connectivity.Shutdown { kept = append(kept, conn) }
		}

		cp.connections.Store(addr, append(kept, newConn))
	}
	
	return newConn, nil
}

/*
	Put Connection:
		1.) if the connection is pooled under the address, leave it open for reuse
		2.) otherwise close it
*/

func (cp *ConnectionPool) PutConnection(addr string, connection *grpc.ClientConn) (bool, error) {
	connections, loaded := cp.connections.Load(addr)
	if loaded {
		for _, conn := range connections.([]*grpc.ClientConn) {
			if conn == connection { return true, nil }
		}
	}

	closeErr := connection.Close()
	if closeErr != nil { return false, closeErr }
	
	return false, nil
}

/*
	Close Connections
		tear down every pooled connection to a peer, used when the peer is declared dead
*/

func (cp *ConnectionPool) CloseConnections(addr string) error {
	connections, loaded := cp.connections.LoadAndDelete(addr)
	if ! loaded { return nil }

	var closeErrs []error
	for _, conn := range connections.([]*grpc.ClientConn) {
		closeErr := conn.Close()
		if closeErr != nil { closeErrs = append(closeErrs, closeErr) }
	}

	return errors.Join(closeErrs...)
}

func (cp *ConnectionPool) CloseAll() {
	cp.connections.Range(func(key, value interface{}) bool {
		cp.CloseConnections(key.(string))
		return true
	})
}
