// Package session tracks per-connection MySQL protocol state.
//
// Grounded on original_source/python_packetSnip/scapy_main.py's
// MySQLSession/session_map (state machine fields, reset-on-new-command
// semantics) and the teacher's chmap-by-endpoint pattern seen in
// other_examples' zll600-mysql-sniffer-go. Bounded with an LRU cache
// (spec.md §4.3) instead of the python original's unbounded dict.
package session

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// State is where a Session sits in the command/response lifecycle
// (spec.md §3).
type State int

const (
	Idle State = iota
	AwaitingResultSet
	ReadingColumns
	ReadingRows
	SkippingPrepareDefs
)

// Endpoint is one side of a TCP flow.
type Endpoint struct {
	IP   string
	Port uint16
}

func (e Endpoint) String() string {
	return e.IP + ":" + portString(e.Port)
}

func portString(p uint16) string {
	const digits = "0123456789"
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = digits[p%10]
		p /= 10
	}
	return string(buf[i:])
}

// Session is the state kept per ClientKey (spec.md §3).
type Session struct {
	State State

	Cmd      byte
	StmtID   uint32
	TxID     string

	ColCount     int
	ColsReceived int
	ColTypes     []byte

	Query string

	// SkipRemaining is cleared by ResetForCommand and not otherwise used:
	// the decoder discards the definition packets after a
	// COM_STMT_PREPARE_OK response via the SkippingPrepareDefs state,
	// until their EOF (spec.md §4.5's minor sub-state).
	SkipRemaining int

	newTxID func() string
}

// ResetForCommand clears result-set tracking and, when newTx is true, mints
// a fresh tx_id: the invariant of spec.md §3 ("a new tx_id is minted at
// that instant" a to-server command arrives).
func (s *Session) ResetForCommand(newTx bool) {
	s.State = Idle
	s.Cmd = 0
	s.StmtID = 0
	s.ColCount = 0
	s.ColsReceived = 0
	s.ColTypes = nil
	s.SkipRemaining = 0
	if newTx && s.newTxID != nil {
		s.TxID = s.newTxID()
	}
}

// Table is the ClientKey → Session map, bounded by an LRU eviction policy
// (spec.md §4.3, default cap 10,000).
type Table struct {
	cache   *lru.Cache[Endpoint, *Session]
	newTxID func() string
	pending map[Endpoint]*PendingPrepare
}

// DefaultCap is the default SessionTable eviction cap (spec.md §4.3).
const DefaultCap = 10_000

// NewTable creates a Table. newTxID generates a fresh tx_id string for each
// command (see event ID generation in the teacher's conn.go); cap<=0 uses
// DefaultCap.
func NewTable(cap int, newTxID func() string) *Table {
	if cap <= 0 {
		cap = DefaultCap
	}
	t := &Table{
		newTxID: newTxID,
		pending: make(map[Endpoint]*PendingPrepare),
	}
	// OnEvict discards any PendingPrepare keyed by the same endpoint,
	// per spec.md §4.3 ("Eviction of a Session also discards any
	// PendingPrepare keyed by the same endpoint").
	c, err := lru.NewWithEvict(cap, func(key Endpoint, _ *Session) {
		delete(t.pending, key)
	})
	if err != nil {
		// Only returns an error for cap<=0, already guarded above.
		panic(err)
	}
	t.cache = c
	return t
}

// Get returns the Session for key, creating one if absent.
func (t *Table) Get(key Endpoint) *Session {
	if s, ok := t.cache.Get(key); ok {
		return s
	}
	s := &Session{newTxID: t.newTxID}
	t.cache.Add(key, s)
	return s
}

// SetPending records the query text of an in-flight COM_STMT_PREPARE for
// key, consumed once the matching PREPARE_OK response arrives.
func (t *Table) SetPending(key Endpoint, query string) {
	t.pending[key] = &PendingPrepare{Query: query}
}

// TakePending consumes and returns the PendingPrepare for key, if any.
func (t *Table) TakePending(key Endpoint) (PendingPrepare, bool) {
	p, ok := t.pending[key]
	if !ok {
		return PendingPrepare{}, false
	}
	delete(t.pending, key)
	return *p, true
}

// DiscardPending drops a pending prepare without consuming it (the
// response was an error, per spec.md §3's PendingPrepare lifecycle).
func (t *Table) DiscardPending(key Endpoint) {
	delete(t.pending, key)
}

// PendingPrepare is the transient per-ClientKey slot holding a
// COM_STMT_PREPARE's query text until the matching response arrives
// (spec.md §3).
type PendingPrepare struct {
	Query string
}

// ParseEndpoint splits an "ip:port" string, tolerating the textual form the
// capture layer hands in. Unparseable ports are treated as 0.
func ParseEndpoint(s string) Endpoint {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return Endpoint{IP: s}
	}
	ip := s[:idx]
	var port uint16
	for _, c := range s[idx+1:] {
		if c < '0' || c > '9' {
			port = 0
			break
		}
		port = port*10 + uint16(c-'0')
	}
	return Endpoint{IP: ip, Port: port}
}
