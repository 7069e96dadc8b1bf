package memory

import (
	"time"

	"ecoagent-be/pkg/conversation"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	// Purge expired sessions every 10 minutes. The analysis backend is the
	// durable store; an expired session just forces a fresh intake.
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *conversation.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*conversation.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*conversation.Session), true
	}
	return nil, false
}

// Touch resets the session's expiration without replacing it.
func (r *SessionRepository) Touch(sessionID string) {
	if x, found := r.cache.Get(sessionID); found {
		r.cache.Set(sessionID, x, cache.DefaultExpiration)
	}
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
