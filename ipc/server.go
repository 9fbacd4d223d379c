package ipc

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	mascot "github.com/mascotrt/mascot"
	"github.com/mascotrt/mascot/config"
)

// EnvironmentSet is the daemon-wide registry of hosted environments a
// Server dispatches summon/list/describe requests against. It is a
// narrow seam (rather than importing *mascot.Environment directly into
// every handler) so tests can fake it.
type EnvironmentSet interface {
	ByID(id uint32) *mascot.Environment
	All() []*mascot.Environment
}

// Server runs the IPC Protocol's connection-multiplexed loop (spec.md
// §4.G, Component I): one accept loop per listener, one goroutine per
// connection, all supervised by a single errgroup.Group so a clean
// shutdown (opcode 0x16 or context cancellation) tears every connection
// down together.
type Server struct {
	log     *logrus.Entry
	envs    EnvironmentSet
	store   *mascot.Store
	cfg     *config.Watcher
	version [3]uint32 // current compiled version, for init-status

	mu          sync.Mutex
	conns       map[string]*connState            // every live connection, keyed by conn id
	subscribers map[string]map[string]*connState // event name -> conn id -> state

	stop context.CancelFunc
}

// NewServer wires a Server against the daemon's live collaborators.
func NewServer(envs EnvironmentSet, store *mascot.Store, cfg *config.Watcher) *Server {
	return &Server{
		log:         logrus.WithField("component", "ipc"),
		envs:        envs,
		store:       store,
		cfg:         cfg,
		conns:       make(map[string]*connState),
		subscribers: make(map[string]map[string]*connState),
	}
}

// Serve accepts connections on ln until ctx is cancelled, supervising
// every connection goroutine with an errgroup so OpStop/ctx cancellation
// propagates to all of them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					return err
				}
			}
			g.Go(func() error {
				s.handleConn(ctx, conn)
				return nil
			})
		}
	})

	return g.Wait()
}

// connState tracks per-connection negotiated state: its correlation id
// and the write side other goroutines (event fan-out) push frames
// through.
type connState struct {
	id   string
	out  chan []byte
	done chan struct{}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	cs := &connState{
		id:   uuid.NewString(),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
	log := s.log.WithField("conn", cs.id)
	s.mu.Lock()
	s.conns[cs.id] = cs
	s.mu.Unlock()
	defer close(cs.done)
	defer s.unsubscribeAll(cs)
	defer func() {
		s.mu.Lock()
		delete(s.conns, cs.id)
		s.mu.Unlock()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w := bufio.NewWriter(conn)
		for {
			select {
			case frame, ok := <-cs.out:
				if !ok {
					return
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-cs.done:
				return
			}
		}
	}()

	reader := bufio.NewReader(conn)
	var buf []byte
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := reader.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
		}
		for {
			f, consumed, decErr := Decode(buf)
			if decErr != nil || consumed == 0 {
				break
			}
			buf = buf[consumed:]
			if f.PacketID == OpClientHello {
				s.handleHello(cs)
			} else {
				s.dispatch(cs, f, log)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) send(cs *connState, f Frame) {
	select {
	case cs.out <- Encode(f):
	case <-cs.done:
	default:
		// slow reader: drop rather than block the dispatch loop
	}
}

// handleHello implements the connection-lifecycle sequence (spec.md
// §4.G): hello reply, then prototype announcements, environment
// records, an info summary, and a done sentinel.
func (s *Server) handleHello(cs *connState) {
	var w PayloadWriter
	w.U8(1) // protocol version implemented
	s.send(cs, Frame{PacketID: OpServerHello, Payload: w.Bytes()})

	var init PayloadWriter
	init.U8(1) // initialisation complete
	s.send(cs, Frame{PacketID: OpInitStatus, Payload: init.Bytes()})

	for _, p := range s.store.All() {
		var pw PayloadWriter
		pw.U32(p.ID)
		pw.ShortString(p.Name)
		pw.ShortString(p.DisplayName)
		s.send(cs, Frame{PacketID: OpPrototypeAnnouncement, Payload: pw.Bytes()})
	}

	for _, env := range s.envs.All() {
		var ew PayloadWriter
		ew.U32(env.EnvID())
		s.send(cs, Frame{PacketID: OpEnvironment, Payload: ew.Bytes()})
	}

	var iw PayloadWriter
	iw.U32(uint32(s.store.Count()))
	iw.U32(uint32(len(s.envs.All())))
	s.send(cs, Frame{PacketID: OpInfo, Payload: iw.Bytes()})

	s.send(cs, Frame{PacketID: OpDone})
}

func (s *Server) dispatch(cs *connState, f Frame, log *logrus.Entry) {
	switch f.PacketID {
	case OpListMascotsByEnv:
		s.handleListMascotsByEnv(cs, f)
	case OpDescribeMascot:
		s.handleDescribeMascot(cs, f)
	case OpDescribePrototype:
		s.handleDescribePrototype(cs, f)
	case OpSummon:
		s.handleSummon(cs, f)
	case OpDismiss:
		s.handleDismiss(cs, f)
	case OpSetBehaviour:
		s.handleSetBehaviour(cs, f)
	case OpReloadPrototype:
		s.handleReloadPrototype(cs, f)
	case OpConfigGetSet:
		s.handleConfig(cs, f)
	case OpSubscribeEvent:
		s.handleSubscribe(cs, f)
	case OpUnsubscribeEvent:
		s.handleUnsubscribe(cs, f)
	case OpStop:
		if s.stop != nil {
			s.stop()
		}
	default:
		log.WithField("opcode", f.PacketID).Warn("unknown opcode")
		s.replyError(cs, f.EventID, ResultUnknownOpcode)
	}
}

func (s *Server) replyError(cs *connState, eventID uint32, code RequestResultCode) {
	var w PayloadWriter
	w.U8(uint8(code))
	w.ShortString(code.FailureReason())
	s.send(cs, Frame{PacketID: OpProtocolError, EventID: eventID, Payload: w.Bytes()})
}

func (s *Server) replyResult(cs *connState, eventID uint32, code RequestResultCode) {
	var w PayloadWriter
	w.U8(uint8(code))
	s.send(cs, Frame{PacketID: OpRequestResult, EventID: eventID, Payload: w.Bytes()})
}

// handleListMascotsByEnv chunks a target environment's live agent IDs at
// mascotIDPageSize per mascot-id-list response, terminated by a done
// sentinel (SPEC_FULL.md supplemented feature 6).
func (s *Server) handleListMascotsByEnv(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	envID := r.U32()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	env := s.envs.ByID(envID)
	if env == nil {
		s.replyError(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	agents := env.Agents()
	for i := 0; i < len(agents); i += mascotIDPageSize {
		end := i + mascotIDPageSize
		if end > len(agents) {
			end = len(agents)
		}
		page := agents[i:end]
		var w PayloadWriter
		w.U16(uint16(len(page)))
		for _, a := range page {
			w.U32(a.ID)
		}
		s.send(cs, Frame{PacketID: OpMascotIDList, EventID: f.EventID, Payload: w.Bytes()})
	}
	s.send(cs, Frame{PacketID: OpDone, EventID: f.EventID})
}

func (s *Server) handleDescribeMascot(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	envID := r.U32()
	mascotID := r.U32()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	env := s.envs.ByID(envID)
	if env == nil {
		s.replyError(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	a := env.AgentByID(mascotID)
	if a == nil {
		s.replyError(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	var w PayloadWriter
	w.U32(a.ID)
	w.ShortString(a.Proto.Name)
	s.send(cs, Frame{PacketID: OpMascotInfo, EventID: f.EventID, Payload: w.Bytes()})
}

func (s *Server) handleDescribePrototype(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	name := r.ShortString()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	p := s.store.GetByName(name)
	if p == nil {
		s.replyError(cs, f.EventID, ResultUnknownPrototype)
		return
	}
	var w PayloadWriter
	w.ShortString(p.Name)
	w.ShortString(p.DisplayName)
	s.send(cs, Frame{PacketID: OpDescriptionPart, EventID: f.EventID, Payload: w.Bytes()})
	s.send(cs, Frame{PacketID: OpDescriptionEnd, EventID: f.EventID})
}

// handleSummon implements spec.md's end-to-end scenario (d): opcode 0x0F
// with name/env_id/x/y spawns a mascot and broadcasts a mascot-announcement.
func (s *Server) handleSummon(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	name := r.ShortString()
	envID := r.U32()
	x := float64(r.F32())
	y := float64(r.F32())
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	env := s.envs.ByID(envID)
	if env == nil {
		s.replyResult(cs, f.EventID, ResultSummonFailureNoEnv)
		return
	}
	proto := s.store.GetByName(name)
	if proto == nil {
		s.replyResult(cs, f.EventID, ResultSummonFailureNoProto)
		return
	}
	a, err := mascot.Spawn(mascot.SpawnParams{
		Prototype:    proto,
		X:            x,
		Y:            y,
		LookingRight: true,
		Env:          env,
	})
	if err != nil {
		s.replyResult(cs, f.EventID, ResultSummonFailureNoProto)
		return
	}
	env.AddAgent(a)
	s.replyResult(cs, f.EventID, ResultOK)

	var aw PayloadWriter
	aw.U32(a.ID)
	aw.U8(0) // action=0, matches spec.md scenario (d)
	s.broadcast(Frame{PacketID: OpMascotAnnouncement, Payload: aw.Bytes()})
}

func (s *Server) handleDismiss(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	envID := r.U32()
	mascotID := r.U32()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	env := s.envs.ByID(envID)
	if env == nil {
		s.replyResult(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	if env.AgentByID(mascotID) == nil {
		s.replyResult(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	env.RemoveAgent(mascotID)
	s.replyResult(cs, f.EventID, ResultOK)
}

func (s *Server) handleSetBehaviour(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	envID := r.U32()
	mascotID := r.U32()
	behaviourName := r.ShortString()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	env := s.envs.ByID(envID)
	if env == nil {
		s.replyResult(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	a := env.AgentByID(mascotID)
	if a == nil {
		s.replyResult(cs, f.EventID, ResultUnknownMascotID)
		return
	}
	b := a.Proto.BehaviourByName(behaviourName)
	if b == nil {
		s.replyResult(cs, f.EventID, ResultBehaviourFailureNoBehaviour)
		return
	}
	a.SetBehaviour(b)
	s.replyResult(cs, f.EventID, ResultOK)
}

// handleReloadPrototype implements spec.md's end-to-end scenarios (e) and
// (f): a successful reload replaces the Store entry wholesale; a
// version-gate failure leaves the Store unchanged.
func (s *Server) handleReloadPrototype(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	path := r.ShortString()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	proto, err := mascot.LoadPackage(path)
	if err != nil {
		var w PayloadWriter
		w.U8(uint8(ResultReloadFailureLoadFailed))
		w.ShortString(ResultReloadFailureLoadFailed.FailureReason())
		w.ShortString(path)
		s.send(cs, Frame{PacketID: OpReloadResult, EventID: f.EventID, Payload: w.Bytes()})
		return
	}
	if err := s.store.Reload(proto); err != nil {
		var w PayloadWriter
		w.U8(uint8(ResultReloadFailureLoadFailed))
		w.ShortString(ResultReloadFailureLoadFailed.FailureReason())
		w.ShortString(path)
		s.send(cs, Frame{PacketID: OpReloadResult, EventID: f.EventID, Payload: w.Bytes()})
		return
	}
	var w PayloadWriter
	w.U8(uint8(ResultOK))
	s.send(cs, Frame{PacketID: OpReloadResult, EventID: f.EventID, Payload: w.Bytes()})
}

// handleConfig implements opcode 0x17: a key, then a has-value flag byte
// that selects get (0) or set (non-zero, followed by the value). A set is
// logged and not applied to the running config. Either way the response on
// OpConfigResponse echoes the key only and carries no value.
func (s *Server) handleConfig(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	key := r.ShortString()
	hasValue := r.U8() != 0
	value := ""
	if hasValue {
		value = r.ShortString()
	}
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	if s.cfg == nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	if hasValue {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Info("ipc config set (hot-reload via file watch, not applied in-process)")
	}
	var w PayloadWriter
	w.ShortString(key)
	s.send(cs, Frame{PacketID: OpConfigResponse, EventID: f.EventID, Payload: w.Bytes()})
}

func (s *Server) handleSubscribe(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	event := r.ShortString()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	s.mu.Lock()
	if s.subscribers[event] == nil {
		s.subscribers[event] = make(map[string]*connState)
	}
	s.subscribers[event][cs.id] = cs
	s.mu.Unlock()
	s.replyResult(cs, f.EventID, ResultOK)
}

func (s *Server) handleUnsubscribe(cs *connState, f Frame) {
	r := NewPayloadReader(f.Payload)
	event := r.ShortString()
	if r.Err() != nil {
		s.replyError(cs, f.EventID, ResultPayloadMalformed)
		return
	}
	s.mu.Lock()
	delete(s.subscribers[event], cs.id)
	s.mu.Unlock()
	s.replyResult(cs, f.EventID, ResultOK)
}

func (s *Server) unsubscribeAll(cs *connState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range s.subscribers {
		delete(set, cs.id)
	}
}

// broadcast sends f to every currently connected client (mascot-announcement
// is unconditional per spec.md scenario (d), not gated by subscription).
func (s *Server) broadcast(f Frame) {
	s.mu.Lock()
	targets := make([]*connState, 0, len(s.conns))
	for _, cs := range s.conns {
		targets = append(targets, cs)
	}
	s.mu.Unlock()
	for _, cs := range targets {
		s.send(cs, f)
	}
}
