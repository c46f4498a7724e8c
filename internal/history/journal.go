package history

import (
	"sync"

	"github.com/Kunal6688/PestDetect/internal/broadcast"
	"github.com/Kunal6688/PestDetect/internal/models"
)

// Journal appends events to a Store and publishes the stamped copy as one
// step, so subscribers receive events in Seq order whatever the producer.
// Publish must not block.
type Journal struct {
	mu    sync.Mutex
	store *Store
	pub   broadcast.Publisher
}

func NewJournal(store *Store, pub broadcast.Publisher) *Journal {
	return &Journal{store: store, pub: pub}
}

// Record appends e, publishes it and returns the stamped copy.
func (j *Journal) Record(e models.Event) models.Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	e = j.store.Append(e)
	if j.pub != nil {
		j.pub.Publish(e)
	}
	return e
}
