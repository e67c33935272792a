package board

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg/event"
)

const maxNotices = 10

// Notice is a staff-facing alert that items were added to an existing order.
type Notice struct {
	ID         uuid.UUID    `json:"id"`
	OrderID    string       `json:"order_id"`
	TableKey   string       `json:"table_key"`
	Items      []event.Item `json:"items"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Notifications is a bounded rolling list of notices, newest first. It is a
// transient attention aid, not a log: once the list is full the oldest notice
// falls off, and nothing here survives a restart.
type Notifications struct {
	mu      sync.RWMutex
	notices []Notice
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (n *Notifications) Push(evt event.ItemsAddedEvent) Notice {
	notice := Notice{
		ID:         uuid.New(),
		OrderID:    evt.OrderID,
		TableKey:   evt.TableKey,
		Items:      evt.Items,
		ReceivedAt: time.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.notices = append([]Notice{notice}, n.notices...)
	if len(n.notices) > maxNotices {
		n.notices = n.notices[:maxNotices]
	}
	return notice
}

func (n *Notifications) List() []Notice {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Notice(nil), n.notices...)
}

func (n *Notifications) Dismiss(id uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.notices {
		if n.notices[i].ID == id {
			n.notices = append(n.notices[:i], n.notices[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Notifications) DismissAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = nil
}
