package hub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/threshold"
)

type fakeControl struct {
	interval time.Duration
	kicks    int
}

func (f *fakeControl) Interval() time.Duration     { return f.interval }
func (f *fakeControl) SetInterval(d time.Duration) { f.interval = d }
func (f *fakeControl) Kick()                       { f.kicks++ }

type fakeAdjuster struct {
	next float64
	err  error

	gotInstallation string
	gotDirection    int
}

func (f *fakeAdjuster) Adjust(_ context.Context, installation string, direction int, _ time.Time) (float64, error) {
	f.gotInstallation = installation
	f.gotDirection = direction
	return f.next, f.err
}

var twoCards = []config.Installation{
	{CardID: 1, Name: "KGU1", FallbackThreshold: 1900},
	{CardID: 2, Name: "KGU2", FallbackThreshold: 2100},
}

func newHub(adjuster Adjuster) (*Hub, *fakeControl) {
	seed := make(map[string]float64)
	for _, inst := range twoCards {
		seed[inst.Name] = inst.FallbackThreshold
	}
	h := New(twoCards, threshold.NewFallbacks(seed), adjuster)
	ctl := &fakeControl{interval: 15 * time.Second}
	h.AttachControl(ctl)
	return h, ctl
}

// recv pulls the next event off a subscriber channel or fails the test.
func recv(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return models.Event{}
	}
}

func TestRegisterDeliversSnapshotFirst(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	ch := h.Register("c1")
	defer h.Unregister("c1")

	ev := recv(t, ch)
	if ev.Type != models.EventConfigAll {
		t.Fatalf("first event type = %v, want configAll", ev.Type)
	}
	if len(ev.Cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(ev.Cards))
	}
	if ev.Cards[0].Threshold != 1900 || ev.Cards[1].Threshold != 2100 {
		t.Errorf("card thresholds = %v / %v, want 1900 / 2100", ev.Cards[0].Threshold, ev.Cards[1].Threshold)
	}
	if ev.Cards[0].PollIntervalMs != 15000 {
		t.Errorf("pollIntervalMs = %d, want 15000", ev.Cards[0].PollIntervalMs)
	}
}

func TestRegisterReplacesExistingID(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	old := h.Register("c1")
	recv(t, old)

	fresh := h.Register("c1")
	defer h.Unregister("c1")

	if _, open := <-old; open {
		t.Error("stale channel should be closed on re-register")
	}
	if h.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", h.ClientCount())
	}
	recv(t, fresh)
}

func TestSetThresholdUpdatesFallbackAndBroadcasts(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	ch := h.Register("c1")
	defer h.Unregister("c1")
	recv(t, ch)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"setThreshold","id":2,"value":2500}`))

	snap := recv(t, ch)
	if snap.Type != models.EventConfigAll {
		t.Fatalf("expected configAll after set, got %v", snap.Type)
	}
	if snap.Cards[1].Threshold != 2500 {
		t.Errorf("card 2 threshold = %v, want 2500", snap.Cards[1].Threshold)
	}
	info := recv(t, ch)
	if info.Type != models.EventInfo || info.ID != 2 {
		t.Errorf("expected info event for card 2, got %+v", info)
	}
}

func TestSetThresholdUnknownCardOnlyNotifiesRequester(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	requester := h.Register("c1")
	bystander := h.Register("c2")
	defer h.Unregister("c1")
	defer h.Unregister("c2")
	recv(t, requester)
	recv(t, bystander)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"setThreshold","id":9,"value":2500}`))

	ev := recv(t, requester)
	if ev.Type != models.EventError {
		t.Fatalf("requester got %v, want error", ev.Type)
	}
	select {
	case ev := <-bystander:
		t.Errorf("bystander received %+v, want nothing", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetPollIntervalBelowMinimumRejected(t *testing.T) {
	h, ctl := newHub(&fakeAdjuster{})
	ch := h.Register("c1")
	defer h.Unregister("c1")
	recv(t, ch)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"setPollIntervalMs","value":500}`))

	ev := recv(t, ch)
	if ev.Type != models.EventError {
		t.Fatalf("got %v, want error for sub-second interval", ev.Type)
	}
	if ctl.interval != 15*time.Second {
		t.Errorf("interval changed to %v on rejected command", ctl.interval)
	}
}

func TestSetPollIntervalRearmsScheduler(t *testing.T) {
	h, ctl := newHub(&fakeAdjuster{})
	ch := h.Register("c1")
	defer h.Unregister("c1")
	recv(t, ch)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"setPollIntervalMs","value":30000}`))

	if ctl.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", ctl.interval)
	}
	snap := recv(t, ch)
	if snap.Type != models.EventConfigAll || snap.Cards[0].PollIntervalMs != 30000 {
		t.Errorf("snapshot after set = %+v, want pollIntervalMs 30000", snap)
	}
	info := recv(t, ch)
	if info.Type != models.EventInfo || !strings.Contains(info.Message, "30") {
		t.Errorf("info = %+v, want interval confirmation", info)
	}
}

func TestAdjustThresholdAppliedBroadcastsNewSnapshot(t *testing.T) {
	adj := &fakeAdjuster{next: 1901}
	h, _ := newHub(adj)
	ch := h.Register("c1")
	defer h.Unregister("c1")
	recv(t, ch)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"adjustThreshold","cardId":1,"adjustment":250}`))

	if adj.gotInstallation != "KGU1" || adj.gotDirection != 1 {
		t.Errorf("engine called with (%s, %d), want (KGU1, +1)", adj.gotInstallation, adj.gotDirection)
	}
	snap := recv(t, ch)
	if snap.Type != models.EventConfigAll {
		t.Fatalf("expected configAll, got %v", snap.Type)
	}
	info := recv(t, ch)
	if info.Type != models.EventInfo || !strings.Contains(info.Message, "KGU1") {
		t.Errorf("info = %+v, want applied confirmation for KGU1", info)
	}
}

func TestAdjustThresholdRejectionBroadcastsError(t *testing.T) {
	adj := &fakeAdjuster{err: &threshold.Rejection{Reason: threshold.RejectOppositeLocked}}
	h, _ := newHub(adj)
	ch := h.Register("c1")
	other := h.Register("c2")
	defer h.Unregister("c1")
	defer h.Unregister("c2")
	recv(t, ch)
	recv(t, other)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"adjustThreshold","cardId":1,"adjustment":-100}`))

	// Rejections are broadcast: every subscriber sees the error
	for _, sub := range []<-chan models.Event{ch, other} {
		ev := recv(t, sub)
		if ev.Type != models.EventError || !strings.Contains(ev.Message, "same direction") {
			t.Errorf("got %+v, want oppositeLocked error", ev)
		}
	}
}

func TestAdjustThresholdZeroAdjustmentRejected(t *testing.T) {
	adj := &fakeAdjuster{next: 1901}
	h, _ := newHub(adj)
	ch := h.Register("c1")
	defer h.Unregister("c1")
	recv(t, ch)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"adjustThreshold","cardId":1,"adjustment":0}`))

	ev := recv(t, ch)
	if ev.Type != models.EventError {
		t.Errorf("got %v, want error for zero adjustment", ev.Type)
	}
	if adj.gotInstallation != "" {
		t.Error("engine must not be called for zero adjustment")
	}
}

func TestCheckNowKicksScheduler(t *testing.T) {
	h, ctl := newHub(&fakeAdjuster{})
	h.Register("c1")
	defer h.Unregister("c1")

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"checkNow","id":1}`))

	if ctl.kicks != 1 {
		t.Errorf("kicks = %d, want 1", ctl.kicks)
	}
}

func TestMalformedCommandOnlyNotifiesRequester(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	requester := h.Register("c1")
	bystander := h.Register("c2")
	defer h.Unregister("c1")
	defer h.Unregister("c2")
	recv(t, requester)
	recv(t, bystander)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"dropTables"}`))

	ev := recv(t, requester)
	if ev.Type != models.EventError {
		t.Fatalf("requester got %v, want error", ev.Type)
	}
	select {
	case ev := <-bystander:
		t.Errorf("bystander received %+v, want nothing", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetConfigAllGoesOnlyToRequester(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	requester := h.Register("c1")
	bystander := h.Register("c2")
	defer h.Unregister("c1")
	defer h.Unregister("c2")
	recv(t, requester)
	recv(t, bystander)

	h.HandleCommand(context.Background(), "c1", []byte(`{"type":"getConfigAll"}`))

	ev := recv(t, requester)
	if ev.Type != models.EventConfigAll {
		t.Fatalf("requester got %v, want configAll", ev.Type)
	}
	select {
	case ev := <-bystander:
		t.Errorf("bystander received %+v, want nothing", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastSkipsFullSubscriber(t *testing.T) {
	h, _ := newHub(&fakeAdjuster{})
	ch := h.Register("slow")
	defer h.Unregister("slow")

	// Fill the queue without draining; snapshot already occupies one slot
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Broadcast(models.NewInfo(1, "tick"))
	}

	// The hub must not have blocked; the channel holds at most its capacity
	if n := len(ch); n > subscriberBuffer {
		t.Errorf("queued %d events, cap %d", n, subscriberBuffer)
	}
}
