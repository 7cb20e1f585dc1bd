package nodetest

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// Server exposes a Node over a real HTTP listener and a gRPC snapshot
// stream, the way a deployed node would.
type Server struct {
	Node *Node
	HTTP *httptest.Server
	Info *transport.InfoServer
}

// NewServer starts serving node on loopback listeners with random ports.
func NewServer(node *Node) (*Server, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	h := &handler{node: node}
	mux.HandleFunc("/alive", h.alive)
	mux.HandleFunc("/elections", h.elections)
	mux.HandleFunc("/new_election", h.newElection)
	mux.HandleFunc("/cast_ballot", h.castBallot)

	s := &Server{
		Node: node,
		HTTP: httptest.NewServer(mux),
		Info: transport.NewInfoServer(lis, nil),
	}
	return s, nil
}

// Client returns a transport client pointed at this server.
func (s *Server) Client(opts transport.Options) *transport.NodeClient {
	return transport.NewClient(s.Node.Port(), s.HTTP.URL, s.Info.Addr(), opts)
}

// Publish pushes the node's current snapshot onto the gRPC stream.
func (s *Server) Publish() error {
	return s.Info.Publish(s.Node.Snapshot())
}

// Close stops both listeners.
func (s *Server) Close() {
	s.Info.Close()
	s.HTTP.Close()
}

// RequestIDHeader is echoed back by the server so tests can see it.
const RequestIDHeader = "X-Request-ID"

type handler struct {
	node *Node
}

func (h *handler) alive(w http.ResponseWriter, r *http.Request) {
	if err := h.node.Alive(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(RequestIDHeader, r.Header.Get(RequestIDHeader))
	w.WriteHeader(http.StatusOK)
}

func (h *handler) elections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ledgers, err := h.node.Elections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ledgers == nil {
		ledgers = []types.Ledger{}
	}
	writeJSON(w, ledgers)
}

func (h *handler) newElection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req types.NewElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	resp, err := h.node.NewElection(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *handler) castBallot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req types.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	rec, err := h.node.CastBallot(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "text/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// writeError maps node errors to HTTP statuses: a rejected request keeps
// its status, an unreachable node looks like a dead backend.
func writeError(w http.ResponseWriter, err error) {
	var se *transport.StatusError
	if errors.As(err, &se) {
		http.Error(w, strings.TrimSpace(se.Body), se.Code)
		return
	}
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}
