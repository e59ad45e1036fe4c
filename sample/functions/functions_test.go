package functions

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/miekg/dns"
	"golang.org/x/net/nettest"

	"github.com/lewta/funcscale/internal/concurrency"
)

// fakeManager always grants up to maxFetch invocations at once and counts
// how many are currently outstanding, for tests that just need the Loop to
// actually call Next.
type fakeManager struct {
	maxFetch    int
	mu          sync.Mutex
	outstanding int
	started     atomic.Int64
	completed   atomic.Int64
}

func (f *fakeManager) GetStatus(string) concurrency.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	fetch := f.maxFetch - f.outstanding
	if fetch < 0 {
		fetch = 0
	}
	return concurrency.Result{CurrentParallelism: f.maxFetch, OutstandingInvocations: f.outstanding, FetchCount: fetch}
}

func (f *fakeManager) FunctionStarted(string) {
	f.mu.Lock()
	f.outstanding++
	f.mu.Unlock()
	f.started.Add(1)
}

func (f *fakeManager) FunctionCompleted(string) {
	f.mu.Lock()
	f.outstanding--
	f.mu.Unlock()
	f.completed.Add(1)
}

func TestWebSocketTrigger_EchoesOneMessagePerConnection(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("creating local listener: %v", err)
	}

	trig := NewWebSocketTrigger(ln)
	go trig.Serve()
	defer trig.Close()

	mgr := &fakeManager{maxFetch: 2}
	loop := &Loop{FunctionID: "ws-echo", Manager: mgr, Next: trig.Next}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go loop.Run(ctx)

	url := "ws://" + ln.Addr().String() + "/"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
		t.Fatalf("writing: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(data) != "ping" {
		t.Errorf("echoed message = %q, want %q", data, "ping")
	}
}

func TestDNSTrigger_AnswersARecord(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	trig := NewDNSTrigger(conn)
	go trig.Serve()
	defer trig.Close()

	mgr := &fakeManager{maxFetch: 1}
	loop := &Loop{FunctionID: "dns-echo", Manager: mgr, Next: trig.Next}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go loop.Run(ctx)

	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)

	var resp *dns.Msg
	for i := 0; i < 20; i++ {
		resp, _, err = client.Exchange(msg, conn.LocalAddr().String())
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(resp.Answer))
	}
	a, ok := resp.Answer[0].(*dns.A)
	if !ok {
		t.Fatalf("expected A record, got %T", resp.Answer[0])
	}
	if a.A.String() != "127.0.0.1" {
		t.Errorf("answer A = %s, want 127.0.0.1", a.A.String())
	}
}

func TestLoop_RespectsFetchCount(t *testing.T) {
	mgr := &fakeManager{maxFetch: 1}
	blocked := make(chan struct{})
	release := make(chan struct{})

	next := func(ctx context.Context) error {
		close(blocked)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	loop := &Loop{FunctionID: "slow", Manager: mgr, Next: next}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go loop.Run(ctx)

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Next was never invoked")
	}

	// maxFetch is 1 and one invocation is outstanding, so no more should
	// start until it completes.
	time.Sleep(300 * time.Millisecond)
	if got := mgr.started.Load(); got != 1 {
		t.Errorf("started = %d, want 1 while at capacity", got)
	}

	close(release)
}
