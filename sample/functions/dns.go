package functions

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

type dnsQuery struct {
	w     dns.ResponseWriter
	req   *dns.Msg
	reply chan *dns.Msg
}

// DNSTrigger runs a DNS server on a UDP packet connection and hands each
// incoming query to a Loop as one invocation's unit of work: answer with a
// fixed A record.
type DNSTrigger struct {
	conn    net.PacketConn
	server  *dns.Server
	queries chan dnsQuery
}

// NewDNSTrigger wraps conn, serving DNS queries on it. Call Serve in a
// goroutine before using Next as a Loop's work source.
func NewDNSTrigger(conn net.PacketConn) *DNSTrigger {
	t := &DNSTrigger{
		conn:    conn,
		queries: make(chan dnsQuery),
	}
	mux := dns.NewServeMux()
	mux.HandleFunc(".", t.handleQuery)
	t.server = &dns.Server{PacketConn: conn, Handler: mux}
	return t
}

func (t *DNSTrigger) handleQuery(w dns.ResponseWriter, req *dns.Msg) {
	q := dnsQuery{w: w, req: req, reply: make(chan *dns.Msg, 1)}
	t.queries <- q
	resp := <-q.reply
	w.WriteMsg(resp) //nolint:errcheck
}

// Serve blocks, answering DNS queries on the wrapped connection, until the
// server is shut down.
func (t *DNSTrigger) Serve() error {
	return t.server.ActivateAndServe()
}

// Close shuts down the DNS server.
func (t *DNSTrigger) Close() error {
	return t.server.Shutdown()
}

// Next is a Loop.Next implementation: it waits for one query and answers it
// with a fixed 127.0.0.1 A record — one query is one invocation.
func (t *DNSTrigger) Next(ctx context.Context) error {
	var q dnsQuery
	select {
	case q = <-t.queries:
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(q.req.Question) == 0 {
		err := fmt.Errorf("query with no question section")
		q.reply <- new(dns.Msg).SetRcode(q.req, dns.RcodeFormatError)
		return err
	}

	resp := new(dns.Msg)
	resp.SetReply(q.req)
	question := q.req.Question[0]
	if question.Qtype == dns.TypeA {
		rr, err := dns.NewRR(fmt.Sprintf("%s 60 IN A 127.0.0.1", question.Name))
		if err == nil {
			resp.Answer = append(resp.Answer, rr)
		}
	}
	q.reply <- resp
	return nil
}
