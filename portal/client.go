package portal

// Update is one observed session state change.
type Update struct {
	State     State  `json:"state"`
	LastError string `json:"lastError,omitempty"`
}

// Client receives session state updates until it cancels or the
// session ends, which closes Updates.
type Client struct {
	Updates <-chan *Update
	Id      uint32

	updates chan *Update
	session *Session
}

func (c *Client) Cancel() {
	c.session.deleteClient(c.Id)
}
