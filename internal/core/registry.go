package core

type connKey struct {
	userID  int64
	channel ChannelType
}

// Registry maps (user, channel) to the single live client for that key.
// It is not safe for concurrent use; the Hub guards it.
type Registry struct {
	conns map[connKey]*Client
	// watchers indexes chat clients by the peer they are paired with.
	watchers map[int64]map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[connKey]*Client),
		watchers: make(map[int64]map[string]*Client),
	}
}

// Register stores c and returns the client it superseded, if any.
func (r *Registry) Register(c *Client) *Client {
	key := connKey{userID: c.UserID, channel: c.Channel}
	prev := r.conns[key]
	if prev != nil {
		r.unwatch(prev)
	}
	r.conns[key] = c
	if c.Channel == ChannelChat {
		set := r.watchers[c.PeerID]
		if set == nil {
			set = make(map[string]*Client)
			r.watchers[c.PeerID] = set
		}
		set[c.ID] = c
	}
	return prev
}

// Unregister removes c only if it is still the registered client for its key.
func (r *Registry) Unregister(c *Client) bool {
	key := connKey{userID: c.UserID, channel: c.Channel}
	if r.conns[key] != c {
		return false
	}
	delete(r.conns, key)
	r.unwatch(c)
	return true
}

func (r *Registry) unwatch(c *Client) {
	if c.Channel != ChannelChat {
		return
	}
	set := r.watchers[c.PeerID]
	delete(set, c.ID)
	if len(set) == 0 {
		delete(r.watchers, c.PeerID)
	}
}

// Lookup returns the live client for (userID, channel) or nil.
func (r *Registry) Lookup(userID int64, channel ChannelType) *Client {
	return r.conns[connKey{userID: userID, channel: channel}]
}

// Present reports whether userID has a live client on any channel.
func (r *Registry) Present(userID int64) bool {
	return r.conns[connKey{userID, ChannelChat}] != nil || r.conns[connKey{userID, ChannelNotify}] != nil
}

// ChatPeer returns userID's chat client if it is paired with peerID.
func (r *Registry) ChatPeer(userID, peerID int64) *Client {
	c := r.conns[connKey{userID, ChannelChat}]
	if c == nil || c.PeerID != peerID {
		return nil
	}
	return c
}

// Watchers returns the chat clients currently paired with userID.
func (r *Registry) Watchers(userID int64) []*Client {
	set := r.watchers[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// All returns every registered client.
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.conns)
}
