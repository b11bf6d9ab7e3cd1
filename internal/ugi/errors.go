package ugi

import "errors"

// Session errors
var (
	ErrStartFailed       = errors.New("engine process failed to start")
	ErrHandshakeTimeout  = errors.New("engine did not complete handshake in time")
	ErrHandshakeRejected = errors.New("engine rejected handshake")
	ErrMoveTimeout       = errors.New("engine did not produce bestmove in time")
	ErrStatusTimeout     = errors.New("engine did not report status in time")
	ErrBadResponse       = errors.New("unexpected engine response")
	ErrEngineExited      = errors.New("engine process exited")
	ErrSessionClosed     = errors.New("session is closed")
)
