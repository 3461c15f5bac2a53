package render

import "sync"

const (
	InputID   = "repoUrl"
	ResultsID = "results"
)

// Display is the output region owned by the widget. Its content is only ever
// replaced as a whole.
type Display struct {
	ID string

	mu      sync.RWMutex
	content string
	subs    map[chan string]struct{}
}

func NewDisplay() *Display {
	return &Display{ID: ResultsID}
}

func (d *Display) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.content
}

func (d *Display) Set(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = html
	for ch := range d.subs {
		// Subscribers only care about the latest content; drop the stale
		// pending value if they have not read it yet.
		select {
		case <-ch:
		default:
		}
		ch <- html
	}
}

func (d *Display) Clear() {
	d.Set("")
}

// Subscribe returns a channel that receives the full content after every
// overwrite, and a function that unsubscribes and closes it.
func (d *Display) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)

	d.mu.Lock()
	if d.subs == nil {
		d.subs = make(map[chan string]struct{})
	}
	d.subs[ch] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, ch)
			d.mu.Unlock()
			close(ch)
		})
	}
}
