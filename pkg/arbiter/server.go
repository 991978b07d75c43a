package arbiter

import (
	"context"
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	// Register all transports (tcp, ipc, inproc)
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/scheduler"
	"github.com/dd0wney/cluso-lineage/pkg/snapshot"
)

// recvPoll bounds how long a Recv blocks so the serve loop can notice
// context cancellation.
const recvPoll = 500 * time.Millisecond

// ServerConfig wires the arbiter to its graph snapshot and sinks.
type ServerConfig struct {
	Addr      string
	GraphPath string
	Sink      audit.Sink
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

// Server owns one graph session and answers claim requests sequentially.
// Because it is the only writer for the lifetime of the process, claims
// cannot double-assign the way concurrent load-mutate-save sessions can.
type Server struct {
	cfg  ServerConfig
	sock mangos.Socket
	log  logging.Logger
}

// NewServer creates and binds the reply socket.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, recvPoll); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Listen(cfg.Addr); err != nil {
		sock.Close()
		return nil, err
	}

	return &Server{
		cfg:  cfg,
		sock: sock,
		log:  cfg.Logger.With(logging.Component("arbiter")),
	}, nil
}

// Serve answers requests until the context is cancelled. The graph is
// loaded once and saved after every accepted claim, so a crash loses at
// most the reply in flight, never an acknowledged claim.
func (s *Server) Serve(ctx context.Context) error {
	g, err := snapshot.LoadOrInit(s.cfg.GraphPath)
	if err != nil {
		return err
	}
	s.log.Info("arbiter serving", logging.Path(s.cfg.GraphPath), logging.Count(g.NodeCount()))

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveGraph(g)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := s.sock.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			return err
		}

		req, err := decodeRequest(msg)
		var resp Response
		if err != nil {
			resp = Response{OK: false, Error: err.Error()}
		} else {
			resp = s.handle(ctx, g, req)
		}

		if err := s.sock.Send(encodeResponse(resp)); err != nil {
			s.log.Error("failed to send reply", logging.Error(err))
		}
	}
}

func (s *Server) handle(ctx context.Context, g *graph.Graph, req Request) Response {
	switch req.Op {
	case OpPing:
		return Response{OK: true}

	case OpPlan:
		var ids []string
		for _, node := range scheduler.Plannable(g) {
			ids = append(ids, node.ID)
		}
		return Response{OK: true, Plannable: ids}

	case OpClaim:
		event, err := scheduler.Claim(g, req.TaskID)
		if err != nil {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
			}
			return Response{OK: false, Error: err.Error(), Code: errorCode(err)}
		}

		// Claim is only durable once both the snapshot and the event land.
		if err := snapshot.Save(s.cfg.GraphPath, g); err != nil {
			s.log.Error("failed to save after claim", logging.NodeID(req.TaskID), logging.Error(err))
			return Response{OK: false, Error: "claim not persisted: " + err.Error()}
		}
		if s.cfg.Sink != nil {
			if err := s.cfg.Sink.Record(ctx, event); err != nil {
				s.log.Warn("failed to record claim event", logging.NodeID(req.TaskID), logging.Error(err))
			}
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
			s.cfg.Metrics.ObserveEvents([]audit.Event{event})
			s.cfg.Metrics.ObserveGraph(g)
		}
		s.log.Info("task claimed", logging.NodeID(req.TaskID))
		return Response{OK: true, Event: &event}
	}

	return Response{OK: false, Error: "unknown op"}
}

// Close shuts the socket down.
func (s *Server) Close() error {
	return s.sock.Close()
}
