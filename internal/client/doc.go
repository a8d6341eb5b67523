// Package client wraps net/http for virtual users.
//
// Every call goes through Client.Do, which never returns an error: transport
// failures and timeouts land in Response.Err so they can be counted like any
// other failed check. When a metrics.Registry is attached, each call also
// feeds the built-in http_reqs, http_req_duration and http_req_failed
// metrics.
//
// # Basic Usage
//
//	c := client.New(client.Config{BaseURL: "http://localhost:8080"}, reg)
//	resp := c.Do(ctx, client.Request{
//	    Method: http.MethodGet,
//	    Path:   "/courses",
//	    Token:  token,
//	})
//	if id, ok := resp.ID(); ok {
//	    // ...
//	}
//
// Response.Field evaluates a JMESPath expression against the decoded JSON
// body, for example resp.Field("[0].name").
package client
