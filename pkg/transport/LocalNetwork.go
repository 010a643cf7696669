package transport

import "context"

import "google.golang.org/grpc"
import "google.golang.org/grpc/codes"
import "google.golang.org/grpc/status"
import "google.golang.org/protobuf/proto"

import "github.com/sirgallo/grsfs/pkg/fsrpc"
import "github.com/sirgallo/grsfs/pkg/group"


//=========================================== Local Network


/*
	Local Network
		an in process Invoker that runs requests through the same service descriptor handlers a grpc server uses
		messages are marshalled across the boundary so no memory is shared between nodes
		Disconnect makes a peer look unreachable without stopping it
*/

func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		servers: make(map[group.Conn]fsrpc.PeerServiceServer),
		down: make(map[group.Conn]bool),
	}
}

func (ln *LocalNetwork) Register(conn group.Conn, srv fsrpc.PeerServiceServer) {
	ln.mutex.Lock()
	defer ln.mutex.Unlock()

	ln.servers[conn] = srv
	delete(ln.down, conn)
}

func (ln *LocalNetwork) Unregister(conn group.Conn) {
	ln.mutex.Lock()
	defer ln.mutex.Unlock()

	delete(ln.servers, conn)
}

func (ln *LocalNetwork) Disconnect(conn group.Conn) {
	ln.mutex.Lock()
	defer ln.mutex.Unlock()

	ln.down[conn] = true
}

func (ln *LocalNetwork) Reconnect(conn group.Conn) {
	ln.mutex.Lock()
	defer ln.mutex.Unlock()

	delete(ln.down, conn)
}

/*
	Invoke:
		1.) an unknown or disconnected peer is unavailable
		2.) look up the method handler on the peer service descriptor
		3.) run it on its own goroutine so the caller deadline holds even when the handler blocks
		4.) copy the reply into out through the wire encoding
	a handler that outlives the deadline keeps running, like a grpc server handler whose client went away,
	its reply lands in the buffered channel and is dropped; Wait blocks until every such handler returned
*/

func (ln *LocalNetwork) Invoke(ctx context.Context, conn group.Conn, method fsrpc.Method, in proto.Message, out proto.Message) error {
	ln.mutex.RLock()
	srv, ok := ln.servers[conn]
	down := ln.down[conn]
	ln.mutex.RUnlock()

	if ! ok || down { return status.Errorf(codes.Unavailable, "peer %s unreachable", conn.String()) }

	desc, found := methodDesc(method)
	if ! found { return status.Errorf(codes.Unimplemented, "method %s not implemented", method) }

	raw, marshalErr := proto.Marshal(in)
	if marshalErr != nil { return status.Error(codes.Internal, marshalErr.Error()) }

	type handled struct {
		resp interface{}
		err error
	}

	done := make(chan handled, 1)
	ln.inflight.Add(1)
	go func() {
		defer ln.inflight.Done()

		dec := func(v interface{}) error { return proto.Unmarshal(raw, v.(proto.Message)) }
		resp, err := desc.Handler(srv, ctx, dec, nil)
		done <- handled{ resp, err }
	}()

	select {
		case <- ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case res := <- done:
			if res.err != nil {
				if _, isStatus := status.FromError(res.err); isStatus { return res.err }
				return status.Error(codes.Unknown, res.err.Error())
			}

			encoded, encErr := proto.Marshal(res.resp.(proto.Message))
			if encErr != nil { return status.Error(codes.Internal, encErr.Error()) }

			return proto.Unmarshal(encoded, out)
	}
}

// Wait returns once every handler started by Invoke has returned, timed out calls included.
func (ln *LocalNetwork) Wait() {
	ln.inflight.Wait()
}

func (ln *LocalNetwork) Close(conn group.Conn) error {
	return nil
}

func methodDesc(method fsrpc.Method) (grpc.MethodDesc, bool) {
	for _, desc := range fsrpc.PeerService_ServiceDesc.Methods {
		if desc.MethodName == string(method) { return desc, true }
	}

	return grpc.MethodDesc{}, false
}
