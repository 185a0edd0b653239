package client

import "net/http"

// RequestHook observes a request after it is assembled and before it is
// sent. It receives a clone; changes do not reach the wire. The body
// must not be read.
type RequestHook func(c *Client, req *http.Request)

// ResponseHook observes a completed response, failed or not, before it
// is returned.
type ResponseHook func(c *Client, resp *Response)

func (c *Client) runRequestHooks(req *http.Request) {
	if len(c.requestHooks) == 0 {
		return
	}

	cpy := req.Clone(req.Context())
	for _, fn := range c.requestHooks {
		fn(c, cpy)
	}
}

func (c *Client) runResponseHooks(resp *Response) {
	for _, fn := range c.responseHooks {
		fn(c, resp)
	}
}
