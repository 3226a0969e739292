package externalcmd

import (
	"sync"
)

// Pool tracks the commands launched by players.
// Closing the pool terminates the commands still running.
type Pool struct {
	wg      sync.WaitGroup
	mutex   sync.Mutex
	running map[*Cmd]struct{}
}

// Initialize initializes a Pool.
func (p *Pool) Initialize() {
	p.running = make(map[*Cmd]struct{})
}

// Running returns the number of commands that are running.
func (p *Pool) Running() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.running)
}

// Close terminates all commands and waits for them to exit.
func (p *Pool) Close() {
	p.mutex.Lock()
	for c := range p.running {
		c.Close()
	}
	p.mutex.Unlock()

	p.wg.Wait()
}

func (p *Pool) add(c *Cmd) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.running[c] = struct{}{}
	p.wg.Add(1)
}

func (p *Pool) remove(c *Cmd) {
	p.mutex.Lock()
	delete(p.running, c)
	p.mutex.Unlock()
	p.wg.Done()
}
