package runtime

import "sync/atomic"

// ShutdownFlag is a cooperative stop signal: Worker.Stop sets it, as does
// the heartbeat loop once the worker finds itself evicted, and the claim
// loop checks it before claiming more work; tasks already dispatched are
// not force-killed mid-transaction.
type ShutdownFlag struct {
	flag atomic.Bool
}

func (s *ShutdownFlag) Set() { s.flag.Store(true) }

func (s *ShutdownFlag) IsSet() bool { return s.flag.Load() }
