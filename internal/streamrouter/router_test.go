package streamrouter

import (
	"bytes"
	"testing"
)

func TestRouteFrameFanOutToAllControllers(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")
	r.RegisterController("S1", "c2")

	if !r.RouteFrame("S1", []byte("frame1"), true) {
		t.Fatalf("expected routing to succeed")
	}

	for _, cid := range []string{"c1", "c2"} {
		frame, ok := r.GetFrame("S1", cid)
		if !ok {
			t.Fatalf("expected frame for %s", cid)
		}
		if !bytes.Equal(frame, []byte("frame1")) {
			t.Fatalf("unexpected frame content for %s: %v", cid, frame)
		}
	}
	stats, ok := r.Stats("S1")
	if !ok || stats.FramesIn != 1 || stats.FramesDropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRouteFrameFragmentedFrameCountsAsOne(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")
	r.RegisterController("S1", "c2")

	const fragments = 10
	for i := 0; i < fragments; i++ {
		if !r.RouteFrame("S1", []byte{byte(i)}, i == 0) {
			t.Fatalf("expected routing to succeed at fragment %d", i)
		}
	}

	for _, cid := range []string{"c1", "c2"} {
		for i := 0; i < fragments; i++ {
			frame, ok := r.GetFrame("S1", cid)
			if !ok || frame[0] != byte(i) {
				t.Fatalf("expected fragment %d in order for %s, got %v ok=%v", i, cid, frame, ok)
			}
		}
	}
	stats, ok := r.Stats("S1")
	if !ok || stats.FramesIn != 1 {
		t.Fatalf("expected one logical frame despite %d wire packets, got %+v", fragments, stats)
	}
}

func TestRouteFrameCopiesBytesPerController(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")
	r.RegisterController("S1", "c2")

	payload := []byte("shared")
	r.RouteFrame("S1", payload, true)
	f1, _ := r.GetFrame("S1", "c1")
	f2, _ := r.GetFrame("S1", "c2")
	f1[0] = 'X'
	if f2[0] == 'X' {
		t.Fatalf("expected independent copies per controller")
	}
}

func TestDropOldestOnFullQueue(t *testing.T) {
	r := New(3)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")

	for i := 0; i < 5; i++ {
		r.RouteFrame("S1", []byte{byte(i)}, true)
	}
	stats, _ := r.Stats("S1")
	if stats.FramesDropped != 2 {
		t.Fatalf("expected 2 dropped frames, got %d", stats.FramesDropped)
	}

	// The surviving entries should be the 3 most recent: 2, 3, 4.
	for _, want := range []byte{2, 3, 4} {
		frame, ok := r.GetFrame("S1", "c1")
		if !ok {
			t.Fatalf("expected frame present")
		}
		if frame[0] != want {
			t.Fatalf("expected %d, got %d", want, frame[0])
		}
	}
}

func TestSlowControllerDoesNotAffectOthers(t *testing.T) {
	r := New(2)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "fast")
	r.RegisterController("S1", "slow")

	// Drain "fast" as we go; never drain "slow".
	for i := 0; i < 10; i++ {
		r.RouteFrame("S1", []byte{byte(i)}, true)
		if _, ok := r.GetFrame("S1", "fast"); !ok {
			t.Fatalf("expected frame for fast controller at iteration %d", i)
		}
	}
	stats, _ := r.Stats("S1")
	if stats.FramesIn != 10 {
		t.Fatalf("device should never be blocked; expected 10 frames in, got %d", stats.FramesIn)
	}
}

func TestUnregisterControllerStopsFanOut(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")
	r.UnregisterController("S1", "c1")

	r.RouteFrame("S1", []byte("x"), true)
	if _, ok := r.GetFrame("S1", "c1"); ok {
		t.Fatalf("expected no frame for unregistered controller")
	}
}

func TestUnregisterDeviceTearsDownEndpoint(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")
	r.UnregisterDevice("S1")

	if ok := r.RouteFrame("S1", []byte("x"), true); ok {
		t.Fatalf("expected routing against torn-down session to report false")
	}
	if _, ok := r.Stats("S1"); ok {
		t.Fatalf("expected no stats for torn-down session")
	}
}

func TestNotifyChanSignalsOnPush(t *testing.T) {
	r := New(DefaultMaxQueue)
	r.RegisterDevice("S1", "d1")
	r.RegisterController("S1", "c1")

	ch, ok := r.NotifyChan("S1", "c1")
	if !ok {
		t.Fatalf("expected notify channel")
	}
	r.RouteFrame("S1", []byte("x"), true)
	select {
	case <-ch:
	default:
		t.Fatalf("expected notify channel to have a pending signal")
	}
}
