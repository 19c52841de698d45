package telegram

import "sync"

// pendingNames tracks users who were asked to type a logger name.
type pendingNames struct {
	mu    sync.Mutex
	users map[int64]struct{}
}

func newPendingNames() *pendingNames {
	return &pendingNames{users: make(map[int64]struct{})}
}

func (p *pendingNames) set(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = struct{}{}
}

func (p *pendingNames) clear(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, userID)
}

func (p *pendingNames) waiting(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.users[userID]
	return ok
}
