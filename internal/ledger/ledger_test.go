package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/linkrace-arena/internal/httpclient"
)

type fakeMirror struct {
	mu   sync.Mutex
	got  []Record
	fail bool
}

func (f *fakeMirror) Mirror(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, rec)
	if f.fail {
		return errors.New("ledger down")
	}
	return nil
}

func TestDispatchSkipsMissingRefs(t *testing.T) {
	f := &fakeMirror{}
	d := NewDispatcher(f, time.Second)
	d.Dispatch(Record{Ref: "0xa", Outcome: "win"}, Record{Ref: "", Outcome: "loss"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(f.got) != 1 || f.got[0].Ref != "0xa" {
		t.Fatalf("unexpected mirrored records %+v", f.got)
	}
}

func TestDispatchFailureIsSwallowed(t *testing.T) {
	f := &fakeMirror{fail: true}
	d := NewDispatcher(f, time.Second)
	d.Dispatch(Record{Ref: "0xa"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(Record{Ref: "x"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestHTTPMirrorPostsStats(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	got := make(chan Record, 1)
	var path string
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		path = string(ctx.Path())
		var rec Record
		_ = json.Unmarshal(ctx.PostBody(), &rec)
		got <- rec
	}}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Shutdown()

	m := NewHTTPMirror(httpclient.New("http://" + ln.Addr().String()))
	if err := m.Mirror(context.Background(), Record{Ref: "0xabc", MatchID: "m1", Outcome: "draw", Rating: 1200}); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	rec := <-got
	if path != "/agents/0xabc/stats" || rec.Outcome != "draw" || rec.Rating != 1200 {
		t.Fatalf("unexpected request path=%s rec=%+v", path, rec)
	}
}
