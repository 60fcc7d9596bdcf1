// Package stmt tracks prepared statements observed in passive capture.
//
// Grounded on the teacher's proxy/mysql/conn.go preparedStmts map and its
// population from a COM_STMT_PREPARE_OK response (handleStmtPrepareOK).
package stmt

// PreparedStatement is what a COM_STMT_PREPARE_OK response tells us about a
// statement: its text (recovered from the matching PendingPrepare), its
// parameter count, and, once seen, its parameter type tags (spec.md §4.5).
type PreparedStatement struct {
	QueryText string
	NumParams int
	ParamTypes []byte
	ColTypes   []byte
}

// Registry maps stmt_id to the PreparedStatement it was assigned by a
// PREPARE_OK response (spec.md §3's StatementRegistry).
type Registry struct {
	byID map[uint32]*PreparedStatement
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint32]*PreparedStatement)}
}

// Register records a newly prepared statement.
func (r *Registry) Register(stmtID uint32, ps PreparedStatement) {
	r.byID[stmtID] = &ps
}

// Lookup returns the PreparedStatement for stmtID, if known.
func (r *Registry) Lookup(stmtID uint32) (*PreparedStatement, bool) {
	ps, ok := r.byID[stmtID]
	return ps, ok
}

// Remove discards a statement on COM_STMT_CLOSE (spec.md §4.6); it is a
// fire-and-forget command with no server response, so removal happens
// unconditionally.
func (r *Registry) Remove(stmtID uint32) {
	delete(r.byID, stmtID)
}

// Count reports how many statements are currently tracked, mainly for
// diagnostics.
func (r *Registry) Count() int {
	return len(r.byID)
}
