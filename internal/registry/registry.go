// Package registry keeps a durable record of created meetings: which
// session belongs to which creator and when it was allocated. Token
// issuance itself stays stateless; this exists for auditing and for the
// meeting-link creator lookup.
package registry

import (
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("meeting not found")

type Meeting struct {
	SessionID string    `gorm:"type:varchar(128);primaryKey" json:"session_id"`
	Creator   string    `gorm:"type:varchar(100);index" json:"creator"`
	URL       string    `gorm:"type:varchar(512)" json:"meeting_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription is one browser push endpoint. The endpoint URL is
// unique per browser registration, so it doubles as the key.
type PushSubscription struct {
	Endpoint  string    `gorm:"type:varchar(512);primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"type:varchar(256)" json:"p256dh"`
	Auth      string    `gorm:"type:varchar(256)" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

type Registry struct {
	db *gorm.DB
}

// Open initializes the sqlite-backed registry at dbPath and runs
// migrations.
func Open(dbPath string) (*Registry, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Meeting{}, &PushSubscription{}); err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

// Record stores a freshly created meeting. Re-recording the same session
// id overwrites the previous row.
func (r *Registry) Record(m Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.Save(&m).Error
}

// Creator returns the recorded creator of a session.
func (r *Registry) Creator(sessionID string) (string, error) {
	var m Meeting
	if err := r.db.First(&m, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return m.Creator, nil
}

// Get returns the full record for a session.
func (r *Registry) Get(sessionID string) (Meeting, error) {
	var m Meeting
	if err := r.db.First(&m, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Meeting{}, ErrNotFound
		}
		return Meeting{}, err
	}
	return m, nil
}

// SaveSubscription stores a push subscription, replacing any previous
// row for the same endpoint.
func (r *Registry) SaveSubscription(s PushSubscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return r.db.Save(&s).Error
}

// DropSubscription removes a push endpoint. Unknown endpoints are not an
// error.
func (r *Registry) DropSubscription(endpoint string) error {
	return r.db.Delete(&PushSubscription{}, "endpoint = ?", endpoint).Error
}

// Subscriptions returns every registered push endpoint.
func (r *Registry) Subscriptions() ([]PushSubscription, error) {
	var subs []PushSubscription
	if err := r.db.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Sweep deletes records older than maxAge and reports how many rows went.
func (r *Registry) Sweep(maxAge time.Duration) (int64, error) {
	res := r.db.Where("created_at < ?", time.Now().Add(-maxAge)).Delete(&Meeting{})
	return res.RowsAffected, res.Error
}
