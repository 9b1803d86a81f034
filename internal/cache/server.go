package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Serve accepts connections on l and answers protocol requests against kv
// until ctx is cancelled. It closes l on return and waits for open
// connections to finish.
func Serve(ctx context.Context, l net.Listener, kv KV, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, kv, log)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, kv KV, log *zap.Logger) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(handle(kv, req, log)); err != nil {
			log.Debug("write response failed", zap.Error(err))
			return
		}
	}
}

func handle(kv KV, req Request, log *zap.Logger) Response {
	switch req.Op {
	case OpGet:
		v, err := kv.Get(req.Key)
		if err != nil {
			return errResponse(err, req, log)
		}
		return Response{OK: true, Value: v}
	case OpPut:
		ttl := time.Duration(req.TTLMillis) * time.Millisecond
		if err := kv.Put(req.Key, req.Value, ttl); err != nil {
			return errResponse(err, req, log)
		}
		return Response{OK: true}
	case OpDelete:
		if err := kv.Delete(req.Key); err != nil {
			return errResponse(err, req, log)
		}
		return Response{OK: true}
	case OpPing:
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}

func errResponse(err error, req Request, log *zap.Logger) Response {
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
		log.Warn("kv operation failed", zap.String("op", req.Op), zap.String("key", req.Key), zap.Error(err))
	}
	return Response{OK: false, Error: err.Error()}
}
