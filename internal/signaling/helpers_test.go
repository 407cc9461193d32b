package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

var errFakeSend = errors.New("fake send failure")

type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   int
	closeReason string
	closeCalls  int
	failSend    bool
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	if f.failSend {
		return errFakeSend
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	return nil
}

func (f *fakeTransport) raw() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, b := range f.frames {
		out[i] = string(b)
	}
	return out
}

func (f *fakeTransport) decoded(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, s := range f.raw() {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(s), &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeTransport) isClosed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

type statusChange struct {
	userID string
	status models.ExamineeStatus
}

type fakeRecorder struct {
	mu       sync.Mutex
	entries  []models.LogEntry
	statuses []statusChange
}

func (r *fakeRecorder) Record(e models.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *fakeRecorder) MarkExaminee(userID string, status models.ExamineeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusChange{userID, status})
}

func (r *fakeRecorder) ofType(typ models.LogType) []models.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LogEntry
	for _, e := range r.entries {
		if e.LogType == typ {
			out = append(out, e)
		}
	}
	return out
}

func newTestManager() (*Manager, *fakeRecorder) {
	rec := &fakeRecorder{}
	return NewManager(rec), rec
}

func mustConnect(t *testing.T, m *Manager, roomID, userID string, role models.Role) (*Connection, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c, err := m.Connect(tr, roomID, userID, role)
	require.NoError(t, err)
	return c, tr
}
