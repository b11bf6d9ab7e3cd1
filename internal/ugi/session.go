// Package ugi drives one external engine process over the Universal Game
// Interface, a line-oriented protocol derived from UCI. A session owns the
// child process, serializes stdin writes and matches responses by scanning
// the stdout line stream in arrival order under per-command deadlines.
package ugi

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ugi-arena/internal/config"
)

// Session lifecycle states
type State int32

const (
	StateSpawned State = iota
	StateHandshaking
	StateReady
	StateThinking
	StateQuitting
	StateKilled
	StateExited
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateThinking:
		return "thinking"
	case StateQuitting:
		return "quitting"
	case StateKilled:
		return "killed"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

// Protocol timing defaults
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStatusTimeout    = 5 * time.Second
	DefaultMoveTimeout      = 30 * time.Second

	// settleDelay follows fire-and-forget commands so the next command
	// does not interleave with the engine still consuming the last one.
	settleDelay = 50 * time.Millisecond

	// shutdownGrace is how long quit gets before the process is killed.
	shutdownGrace = 500 * time.Millisecond
)

// Session manages one engine child process
type Session struct {
	name  string
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines   chan string   // normalized stdout lines, closed on exit
	exited  chan struct{} // closed once the process has been reaped
	closing chan struct{} // closed when Shutdown begins

	state    atomic.Int32
	writeMu  sync.Mutex
	shutdown sync.Once
}

// Start spawns the engine described by cfg and begins reading its output.
// The returned session has not performed the UGI handshake yet.
func Start(cfg config.EngineConfig) (*Session, error) {
	cmd := exec.Command(cfg.Executable, cfg.Arguments...)
	cmd.Dir = cfg.WorkingDirectory

	// Process environment overlaid with the per-engine map
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrStartFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrStartFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrStartFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	s := &Session{
		name:    cfg.Name,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan string, 64),
		exited:  make(chan struct{}),
		closing: make(chan struct{}),
	}
	s.state.Store(int32(StateSpawned))

	var readers sync.WaitGroup
	readers.Add(2)
	go s.readStdout(stdout, &readers)
	go s.readStderr(stderr, &readers)
	go s.reap(&readers)

	log.Printf("[UGI %s] started pid %d", s.name, cmd.Process.Pid)
	return s, nil
}

// Name returns the configured engine name
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) readStdout(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line, ok := normalizeLine(scanner.Text())
		if !ok {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.closing:
			// Nobody is listening anymore; keep draining so the
			// pipe reaches EOF and the process can be reaped.
			for scanner.Scan() {
			}
			return
		}
	}
}

func (s *Session) readStderr(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Printf("[ENGINE %s] stderr: %s", s.name, scanner.Text())
	}
}

// reap waits for both pipe readers, then for the process, and publishes
// the exit. Every spawned process passes through here exactly once.
func (s *Session) reap(readers *sync.WaitGroup) {
	readers.Wait()
	err := s.cmd.Wait()
	if st := s.State(); st != StateQuitting && st != StateKilled {
		log.Printf("[UGI %s] process exited unexpectedly: %v", s.name, err)
	}
	s.setState(StateExited)
	close(s.lines)
	close(s.exited)
}

// send writes one protocol line to the engine's stdin
func (s *Session) send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.exited:
		return ErrEngineExited
	default:
	}
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrEngineExited, line, err)
	}
	return nil
}

// readLine returns the next stdout line, or an error when the deadline
// passes or the process exits first
func (s *Session) readLine(deadline time.Time, timeoutErr error) (string, error) {
	wait := time.Until(deadline)
	if wait <= 0 {
		return "", timeoutErr
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", ErrEngineExited
		}
		return line, nil
	case <-timer.C:
		return "", timeoutErr
	}
}

// waitForToken discards informational lines until the exact token arrives
func (s *Session) waitForToken(token string, deadline time.Time, timeoutErr error) error {
	for {
		line, err := s.readLine(deadline, timeoutErr)
		if err != nil {
			return err
		}
		if line == token {
			return nil
		}
		// id lines, info lines and anything unrecognized are informational
	}
}

// Handshake performs the ugi / setoption / isready exchange. Options are
// sent in sorted key order so runs are reproducible.
func (s *Session) Handshake(timeout time.Duration, options map[string]string) error {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	deadline := time.Now().Add(timeout)
	s.setState(StateHandshaking)

	if err := s.send("ugi"); err != nil {
		return err
	}
	if err := s.waitForToken("ugiok", deadline, ErrHandshakeTimeout); err != nil {
		return err
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.send(fmt.Sprintf("setoption name %s value %s", k, options[k])); err != nil {
			return err
		}
	}

	if err := s.send("isready"); err != nil {
		return err
	}
	if err := s.waitForToken("readyok", deadline, ErrHandshakeTimeout); err != nil {
		return err
	}

	s.setState(StateReady)
	log.Printf("[UGI %s] handshake complete", s.name)
	return nil
}

// RequestMove sends go and waits for the bestmove reply. On timeout the
// session is only usable again if a later Probe succeeds.
func (s *Session) RequestMove(timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultMoveTimeout
	}
	deadline := time.Now().Add(timeout)

	s.setState(StateThinking)
	defer s.setState(StateReady)

	if err := s.send("go"); err != nil {
		return "", err
	}
	for {
		line, err := s.readLine(deadline, ErrMoveTimeout)
		if err != nil {
			return "", err
		}
		if move, ok := parseBestMove(line); ok {
			return move, nil
		}
	}
}

// ApplyMove tells the engine to play a move on its internal state.
// Fire-and-forget; a settling delay keeps the next command from
// interleaving.
func (s *Session) ApplyMove(move string) error {
	if err := s.send("makemove " + move); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	return nil
}

// SetPosition applies an alternative initial state before any moves
func (s *Session) SetPosition(fen string) error {
	if err := s.send("position fen " + fen); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	return nil
}

// QueryStatus asks for the game state. It gathers status and info player
// lines until both players' results are seen or the deadline elapses,
// returning whatever was gathered.
func (s *Session) QueryStatus(timeout time.Duration) (*GameStatus, error) {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	deadline := time.Now().Add(timeout)

	if err := s.send("status"); err != nil {
		return nil, err
	}
	status := NewGameStatus()
	sawStatus := false
	for !status.BothResultsSeen() {
		line, err := s.readLine(deadline, ErrStatusTimeout)
		if err != nil {
			if err == ErrStatusTimeout && sawStatus {
				break
			}
			return status, err
		}
		status.applyStatusLine(line)
		if !sawStatus && status.State != "" {
			sawStatus = true
			// An in-progress game never reports results; one status
			// line is the whole answer.
			if status.InProgress {
				break
			}
		}
	}
	return status, nil
}

// Probe checks that the engine still answers isready after a timeout
func (s *Session) Probe(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if err := s.send("isready"); err != nil {
		return err
	}
	return s.waitForToken("readyok", deadline, ErrMoveTimeout)
}

// Shutdown quits the engine gracefully, force-killing after a short grace
// period. Idempotent; always reaps the process.
func (s *Session) Shutdown() {
	s.shutdown.Do(func() {
		close(s.closing)
		if s.State() != StateExited {
			s.setState(StateQuitting)
			_ = s.send("quit")
		}
		s.writeMu.Lock()
		_ = s.stdin.Close()
		s.writeMu.Unlock()

		select {
		case <-s.exited:
		case <-time.After(shutdownGrace):
			s.setState(StateKilled)
			log.Printf("[UGI %s] did not quit in time, killing", s.name)
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		log.Printf("[UGI %s] shut down", s.name)
	})
}
