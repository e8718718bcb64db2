package store

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/models"
)

// Store is the in-memory session registry. It is the single source of truth
// for session lifecycle and is safe for concurrent use by the capture path
// and the background workers. It also fans state updates out to subscribers.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	retired     map[string]time.Time // expired ids and when they expired
	subscribers map[chan Update]struct{}

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the session id generator, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a new Store instance.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:    make(map[string]*models.Session),
		retired:     make(map[string]time.Time),
		subscribers: make(map[chan Update]struct{}),
		now:         time.Now,
		newID:       newSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSessionID returns a 10 character lowercase hex token taken from the
// random bytes of a v4 UUID. Short enough for a QR payload, URL-safe.
func newSessionID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:5])
}

// CreateSession registers an empty session and returns its id. Never fails.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		_, live := s.sessions[id]
		_, gone := s.retired[id]
		if !live && !gone {
			break
		}
		id = s.newID()
	}

	now := s.now()
	sess := &models.Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Photos:       []models.Photo{},
	}
	s.sessions[id] = sess

	s.broadcastLocked(Update{Type: UpdateSessions, Source: "store", Payload: sess.Clone()})
	return id
}

// AddPhoto appends a photo to the session. An empty remoteURL records the
// photo as pending; the caller is responsible for enqueueing it.
func (s *Store) AddPhoto(sessionID, localPath, remoteURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errors.SessionNotFound(sessionID)
	}

	now := s.now()
	sess.Photos = append(sess.Photos, models.Photo{
		LocalPath:  localPath,
		RemoteURL:  remoteURL,
		CapturedAt: now,
		Uploaded:   remoteURL != "",
	})
	sess.LastActivity = now

	s.broadcastLocked(Update{Type: UpdateSessions, Source: "store", Payload: sess.Clone()})
	return nil
}

// Touch marks the session as actively extended ("take another").
func (s *Store) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errors.SessionNotFound(sessionID)
	}
	sess.LastActivity = s.now()
	return nil
}

// MarkUploaded records the remote URL of a photo. It is idempotent and
// best-effort: a missing session or photo is not an error, the upload still
// happened. It reports whether a photo record was updated.
func (s *Store) MarkUploaded(sessionID, localPath, remoteURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}

	for i := range sess.Photos {
		p := &sess.Photos[i]
		if p.LocalPath != localPath {
			continue
		}
		if p.Uploaded {
			// remote URL is immutable once set
			return false
		}
		p.RemoteURL = remoteURL
		p.Uploaded = true
		s.broadcastLocked(Update{Type: UpdateSessions, Source: "store", Payload: sess.Clone()})
		return true
	}
	return false
}

// AttachFolder sets the session-level remote folder on first call. Later
// calls leave the existing values in place.
func (s *Store) AttachFolder(sessionID, folderRef, shareURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	changed := false
	if sess.DriveFolderRef == "" && folderRef != "" {
		sess.DriveFolderRef = folderRef
		changed = true
	}
	if sess.ShareURL == "" && shareURL != "" {
		sess.ShareURL = shareURL
		changed = true
	}
	return changed
}

// QRPayload returns what the kiosk should encode in the session QR code.
func (s *Store) QRPayload(sessionID string) (*models.QRPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		err := errors.SessionNotFound(sessionID)
		if _, seen := s.retired[sessionID]; seen {
			err = err.WithDetail("expired", true)
		}
		return nil, err
	}

	count := len(sess.Photos)
	if url := sessionURL(sess); url != "" {
		return &models.QRPayload{
			Type:       models.QROnline,
			URL:        url,
			PhotoCount: count,
			SessionID:  sess.ID,
		}, nil
	}

	return &models.QRPayload{
		Type:       models.QROffline,
		SessionID:  sess.ID,
		PhotoCount: count,
		Message:    models.OfflineMessage,
	}, nil
}

// sessionURL picks the shared session link once at least one photo is
// uploaded, falling back to the first uploaded photo's link.
func sessionURL(sess *models.Session) string {
	var first string
	for _, p := range sess.Photos {
		if p.Uploaded {
			first = p.RemoteURL
			break
		}
	}
	if first == "" {
		return ""
	}
	if sess.ShareURL != "" {
		return sess.ShareURL
	}
	return first
}

// ExpireOlderThan removes every session whose last activity is before
// cutoff and returns the removed ids. Expired ids are remembered so QR
// lookups can report them as expired, until a later pass's cutoff passes
// the time they expired.
func (s *Store) ExpireOlderThan(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, at := range s.retired {
		if at.Before(cutoff) {
			delete(s.retired, id)
		}
	}

	now := s.now()
	var expired []string
	for id, sess := range s.sessions {
		if sess.ActiveSince().Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
			s.retired[id] = now
		}
	}
	sort.Strings(expired)

	if len(expired) > 0 {
		s.broadcastLocked(Update{Type: UpdateSessions, Source: "expiry", Payload: expired})
	}
	return expired
}

// Get returns a copy of a session.
func (s *Store) Get(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.SessionNotFound(sessionID)
	}
	return sess.Clone(), nil
}

// Exists reports whether the session is live.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// GetSessions returns copies of all live sessions, oldest first.
func (s *Store) GetSessions() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Broadcast sends an update to all subscribers.
func (s *Store) Broadcast(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcastLocked(u)
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
