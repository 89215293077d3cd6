package session

import (
	"context"
	"sync"
)

type sessionManager interface {
	SignUp(ctx context.Context, req SignUpRequest) Result
	SignIn(ctx context.Context, email, password string) Result
	SignOut(ctx context.Context) bool
	LookupSession(ctx context.Context) (Profile, SessionStatus)
	UpdateProfile(ctx context.Context, p Profile) (Profile, bool)
	IsAuthenticated(ctx context.Context) bool
}

// Controller holds the published session state for the presentation layer.
// Operations are not serialised; concurrent calls race and the last publish
// wins.
type Controller struct {
	manager sessionManager

	mu      sync.Mutex
	state   State
	loading int
	nextID  int
	subs    map[int]chan State
}

// NewController returns a controller in the Unauthenticated state.
func NewController(manager sessionManager) *Controller {
	return &Controller{
		manager: manager,
		state:   stateUnauthenticated(""),
		subs:    make(map[int]chan State),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Loading reports whether a sign-up or sign-in is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// Subscribe returns a channel that receives the current state and every
// subsequent change. A slow reader only sees the newest state. The cancel
// function closes the channel and may be called more than once.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Start runs the startup session check with a single provider lookup.
func (c *Controller) Start(ctx context.Context) State {
	profile, status := c.manager.LookupSession(ctx)
	switch status {
	case SessionActive:
		return c.publish(stateAuthenticated(profile))
	case SessionWithoutProfile:
		return c.publish(stateFailed(ReasonNoProfileData))
	default:
		return c.publish(stateFailed(ReasonNotSignedIn))
	}
}

// SignUp creates an account and publishes the outcome.
func (c *Controller) SignUp(ctx context.Context, req SignUpRequest) Result {
	c.begin()
	defer c.end()
	res := c.manager.SignUp(ctx, req)
	c.publishResult(res)
	return res
}

// SignIn authenticates and publishes the outcome.
func (c *Controller) SignIn(ctx context.Context, email, password string) Result {
	c.begin()
	defer c.end()
	res := c.manager.SignIn(ctx, email, password)
	c.publishResult(res)
	return res
}

// SignOut always publishes the signed-out marker, whatever the provider
// reports, and returns the provider outcome.
func (c *Controller) SignOut(ctx context.Context) bool {
	ok := c.manager.SignOut(ctx)
	c.publish(stateUnauthenticated(ReasonSignedOut))
	return ok
}

// UpdateProfile writes p and publishes the updated profile on success.
func (c *Controller) UpdateProfile(ctx context.Context, p Profile) (Profile, bool) {
	updated, ok := c.manager.UpdateProfile(ctx, p)
	if ok {
		c.publish(stateAuthenticated(updated))
	}
	return updated, ok
}

// IsAuthenticated passes through to the manager.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	return c.manager.IsAuthenticated(ctx)
}

// Reset moves a Failed state back to Unauthenticated.
func (c *Controller) Reset() State {
	c.mu.Lock()
	if c.state.Kind != Failed {
		st := c.state
		c.mu.Unlock()
		return st
	}
	c.mu.Unlock()
	return c.publish(stateUnauthenticated(""))
}

func (c *Controller) begin() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	c.publish(State{Kind: Authenticating})
}

func (c *Controller) end() {
	c.mu.Lock()
	c.loading--
	c.mu.Unlock()
}

func (c *Controller) publishResult(res Result) {
	switch r := res.(type) {
	case Success:
		c.publish(stateAuthenticated(r.Profile))
	case *Failure:
		c.publish(stateFailed(r.Message))
	}
}

func (c *Controller) publish(st State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
	return st
}
