// Package decode implements the stateful MySQL wire-protocol decoder: the
// core of the system. It frames packets via wire.Reader, tracks per-flow
// session state, binds COM_STMT_EXECUTE parameters against the
// StatementRegistry, decodes values via codec, and emits event.Event
// values.
//
// Grounded on the teacher's proxy/mysql/conn.go (captureClientPacket,
// captureUpstreamPacket, handleFirstResponse, handleStmtPrepareOK,
// parseStmtExecuteArgs) and, for the precise state-machine shape,
// original_source/python_packetSnip/scapy_main.py's parse_mysql_payload.
// Unlike the teacher, which relays live net.Conn traffic, the Decoder here
// only observes already-captured TCP payloads: it never writes back to
// either side of the connection.
package decode

import (
	"encoding/binary"
	"time"

	"github.com/tapline/mysqlwire/codec"
	"github.com/tapline/mysqlwire/event"
	"github.com/tapline/mysqlwire/query"
	"github.com/tapline/mysqlwire/session"
	"github.com/tapline/mysqlwire/stmt"
	"github.com/tapline/mysqlwire/wire"
)

// MySQL client command codes (spec.md §4.5).
const (
	comQuery       byte = 0x03
	comStmtPrepare byte = 0x16
	comStmtExecute byte = 0x17
	comStmtClose   byte = 0x19
)

// summaryLimit bounds the human-readable summary field carried alongside
// full_query in emitted events.
const summaryLimit = 100

// Decoder consumes raw TCP payloads captured on both sides of a MySQL
// connection and emits structured events.
type Decoder struct {
	sessions  *session.Table
	stmts     *stmt.Registry
	mysqlPort uint16
	onEvent   func(event.Event)
}

// New creates a Decoder. onEvent is invoked once per decoded event, on the
// calling goroutine: per spec.md §5 the decoder itself never blocks, so
// onEvent must hand off to a queue rather than performing sink I/O inline.
func New(sessions *session.Table, stmts *stmt.Registry, mysqlPort uint16, onEvent func(event.Event)) *Decoder {
	return &Decoder{sessions: sessions, stmts: stmts, mysqlPort: mysqlPort, onEvent: onEvent}
}

// HandlePayload decodes every MySQL packet framed within one captured TCP
// payload, in order, per spec.md §4.5's "Orderings and tie-breaks".
func (d *Decoder) HandlePayload(ts time.Time, srcIP string, srcPort uint16, dstIP string, dstPort uint16, payload []byte) {
	toServer := dstPort == d.mysqlPort
	fromServer := srcPort == d.mysqlPort
	if !toServer && !fromServer {
		return
	}

	var key session.Endpoint
	if toServer {
		key = session.Endpoint{IP: srcIP, Port: srcPort}
	} else {
		key = session.Endpoint{IP: dstIP, Port: dstPort}
	}
	sess := d.sessions.Get(key)

	src := session.Endpoint{IP: srcIP, Port: srcPort}.String()
	dst := session.Endpoint{IP: dstIP, Port: dstPort}.String()

	r := wire.NewReader(payload)
	for {
		pkt, ok := r.Next()
		if !ok {
			return
		}
		if pkt.Length == 0 {
			continue
		}
		if toServer {
			d.handleToServer(sess, key, pkt, ts, src, dst)
		} else {
			d.handleFromServer(sess, key, pkt, ts, src, dst)
		}
	}
}

func (d *Decoder) emit(ev event.Event) {
	if d.onEvent != nil {
		d.onEvent(ev)
	}
}

func summarize(q string) string {
	if len(q) <= summaryLimit {
		return q
	}
	return q[:summaryLimit] + "..."
}

func (d *Decoder) handleToServer(sess *session.Session, key session.Endpoint, pkt wire.Packet, ts time.Time, src, dst string) {
	body := pkt.Body
	if len(body) == 0 {
		return
	}

	sess.ResetForCommand(true)
	cmd := body[0]
	sess.Cmd = cmd

	base := event.Event{Timestamp: ts, Src: src, Dst: dst, TxID: sess.TxID}

	switch cmd {
	case comQuery:
		query := string(body[1:])
		sess.State = session.AwaitingResultSet
		sess.Query = query
		ev := base
		ev.Kind = event.Query
		ev.Query = query
		ev.Summary = summarize(query)
		d.emit(ev)

	case comStmtPrepare:
		query := string(body[1:])
		sess.State = session.AwaitingResultSet
		d.sessions.SetPending(key, query)
		ev := base
		ev.Kind = event.Prepare
		ev.Query = query
		ev.Summary = summarize(query)
		d.emit(ev)

	case comStmtExecute:
		if len(body) < 10 {
			return
		}
		stmtID := binary.LittleEndian.Uint32(body[1:5])
		sess.StmtID = stmtID
		sess.State = session.AwaitingResultSet

		ev := base
		ev.Kind = event.Execute

		ps, found := d.stmts.Lookup(stmtID)
		if !found {
			ev.UnknownStmt = true
			d.emit(ev)
			return
		}
		sess.Query = ps.QueryText
		sess.ColTypes = append([]byte(nil), ps.ColTypes...)
		ev.Query = ps.QueryText
		ev.Params = codec.DecodeParams(body, 10, ps.ParamTypes)
		ev.Summary = summarize(query.Bind(ps.QueryText, ev.Params))
		d.emit(ev)

	case comStmtClose:
		if len(body) >= 5 {
			stmtID := binary.LittleEndian.Uint32(body[1:5])
			d.stmts.Remove(stmtID)
		}
		sess.State = session.Idle
		ev := base
		ev.Kind = event.Close
		d.emit(ev)

	default:
		sess.State = session.Idle
		ev := base
		ev.Kind = event.Cmd
		d.emit(ev)
	}
}

func (d *Decoder) handleFromServer(sess *session.Session, key session.Endpoint, pkt wire.Packet, ts time.Time, src, dst string) {
	body := pkt.Body
	base := event.Event{Timestamp: ts, Src: src, Dst: dst, TxID: sess.TxID}

	switch sess.State {
	case session.AwaitingResultSet:
		first := pkt.FirstByte()

		if first == 0x00 && len(body) >= 9 {
			if pending, ok := d.sessions.TakePending(key); ok {
				stmtID := binary.LittleEndian.Uint32(body[1:5])
				numParams := binary.LittleEndian.Uint16(body[7:9])
				d.stmts.Register(stmtID, stmt.PreparedStatement{
					QueryText:  pending.Query,
					NumParams:  int(numParams),
					ParamTypes: make([]byte, numParams),
				})
				ev := base
				ev.Kind = event.PrepareOK
				ev.Query = pending.Query
				ev.Summary = summarize(pending.Query)
				d.emit(ev)
				sess.State = session.SkippingPrepareDefs
				return
			}
		}

		if first == 0x00 {
			sess.State = session.Idle
			return
		}
		if first == 0xFF {
			d.sessions.DiscardPending(key)
			sess.State = session.Idle
			return
		}

		colCount, n := codec.LenEncInt(body, 0)
		if n == 0 {
			sess.State = session.Idle
			return
		}
		sess.ColCount = int(colCount)
		sess.ColTypes = nil
		sess.ColsReceived = 0
		sess.State = session.ReadingColumns

	case session.ReadingColumns:
		if pkt.IsEOF() {
			sess.State = session.ReadingRows
			return
		}
		colType, ok := parseColumnDefinition(body)
		if !ok {
			return
		}
		sess.ColTypes = append(sess.ColTypes, colType)
		sess.ColsReceived++

	case session.ReadingRows:
		if pkt.IsEOF() {
			sess.State = session.Idle
			return
		}

		ev := base
		ev.Kind = event.Row
		if sess.Cmd == comStmtExecute && pkt.FirstByte() == 0x00 {
			ev.Row = codec.DecodeRow(body, 1, sess.ColTypes)
		} else {
			ev.Row = decodeTextRow(body, sess.ColCount)
		}
		d.emit(ev)

	case session.SkippingPrepareDefs:
		if pkt.IsEOF() {
			sess.State = session.Idle
		}

	case session.Idle:
		// No command outstanding for this endpoint; an unsolicited
		// from-server packet is ignored rather than corrupting state.
	}
}

// parseColumnDefinition walks a ColumnDefinition41 packet body and returns
// its column type tag (spec.md §4.5's READING_COLUMNS branch).
func parseColumnDefinition(body []byte) (byte, bool) {
	off := 0
	for i := 0; i < 6; i++ {
		_, _, n := codec.LenEncStr(body, off)
		if n == 0 {
			return 0, false
		}
		off += n
	}
	off++ // filler byte
	off += 2 // charset
	off += 4 // column length
	if off >= len(body) {
		return 0, false
	}
	return body[off], true
}

// decodeTextRow decodes a text-protocol result row: n length-encoded
// strings, 0xFB signaling SQL NULL (spec.md §4.5's READING_ROWS branch).
func decodeTextRow(body []byte, n int) []string {
	values := make([]string, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		s, isNull, size := codec.LenEncStr(body, off)
		if size == 0 {
			values = append(values, codec.ErrorValue)
			for j := i + 1; j < n; j++ {
				values = append(values, codec.ErrorValue)
			}
			break
		}
		if isNull {
			values = append(values, "NULL")
		} else {
			values = append(values, s)
		}
		off += size
	}
	return values
}
