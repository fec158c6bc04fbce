package signaling

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestMailbox_FIFOAcrossProducers(t *testing.T) {
	mb := newMailbox()
	done := make(chan struct{})
	go func() {
		defer close(done)
		mb.run()
	}()

	const producers = 8
	const perProducer = 500

	var mu sync.Mutex
	last := make(map[int]int, producers)
	total := 0
	var violation string

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				i := i
				if !mb.Post(func() {
					mu.Lock()
					defer mu.Unlock()
					if prev, ok := last[p]; ok && prev+1 != i && violation == "" {
						violation = "out of order"
					}
					last[p] = i
					total++
				}) {
					t.Errorf("Post returned false on an open mailbox")
					return
				}
			}
		}(p)
	}
	wg.Wait()
	mb.Close()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatalf("mailbox did not drain")
	}
	if violation != "" {
		t.Fatalf("per-producer order violated")
	}
	if total != producers*perProducer {
		t.Fatalf("ran %d tasks, want %d", total, producers*perProducer)
	}
}

func TestMailbox_PostAfterCloseRejected(t *testing.T) {
	mb := newMailbox()

	ran := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		i := i
		mb.Post(func() { ran = append(ran, i) })
	}
	mb.Close()

	if mb.Post(func() { ran = append(ran, 99) }) {
		t.Fatalf("Post after Close=true, want false")
	}

	// Tasks queued before Close still run.
	mb.run()
	if len(ran) != 3 || ran[0] != 0 || ran[1] != 1 || ran[2] != 2 {
		t.Fatalf("ran=%v, want [0 1 2]", ran)
	}
}

func TestMailbox_TaskMayPostAndClose(t *testing.T) {
	mb := newMailbox()

	var order []string
	mb.Post(func() {
		order = append(order, "first")
		mb.Post(func() {
			order = append(order, "second")
			mb.Close()
		})
	})

	finished := make(chan struct{})
	go func() {
		mb.run()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(testTimeout):
		t.Fatalf("run did not return after Close")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order=%v", order)
	}
}

func TestStateMarshaller_DropsAfterClose(t *testing.T) {
	mb := newMailbox()
	var applied []string
	m := &stateMarshaller{mb: mb, apply: func(st webrtc.ICEConnectionState) { applied = append(applied, st.String()) }}

	m.Handoff(webrtc.ICEConnectionStateChecking)
	m.Handoff(webrtc.ICEConnectionStateConnected)
	mb.Close()
	m.Handoff(webrtc.ICEConnectionStateFailed)
	mb.run()

	if len(applied) != 2 || applied[0] != "checking" || applied[1] != "connected" {
		t.Fatalf("applied=%v, want [checking connected]", applied)
	}
}
