package state

// Session is the in-flight conversation of one user: the wizard it belongs
// to, the current step tag and the fields collected so far.
type Session struct {
	Flow   string
	Step   string
	Fields map[string]string
}

// Clone returns a deep copy so callers never share the field map.
func (s Session) Clone() Session {
	out := Session{Flow: s.Flow, Step: s.Step, Fields: make(map[string]string, len(s.Fields))}
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	return out
}

// Field returns a collected value or "".
func (s Session) Field(name string) string {
	return s.Fields[name]
}

// Manager is the conversation store consumed by the flow engine and routers.
type Manager interface {
	Get(userID int64) (Session, bool)
	Set(userID int64, s Session)
	Clear(userID int64)
	InProgress(userID int64) bool
	// Lock serializes turns of one user; call the returned func to release.
	Lock(userID int64) (unlock func())
}
