package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emberchat/callkit/pkg/agent"
	"github.com/emberchat/callkit/pkg/permission"
	"github.com/emberchat/callkit/pkg/preview"
	"github.com/emberchat/callkit/pkg/quota"
	"github.com/emberchat/callkit/pkg/transport"
)

type harness struct {
	driver   *transport.MockDriver
	capture  *preview.MockCapture
	platform *permission.MockPlatform
	catalog  *agent.MockCatalog
	store    *quota.MockStore
	ctrl     *Controller

	mu        sync.Mutex
	exhausted int
	notices   []string
	bridge    []bool
}

func newHarness(t *testing.T, seconds int, tier quota.Tier) *harness {
	t.Helper()

	h := &harness{
		driver:   transport.NewMockDriver(),
		capture:  &preview.MockCapture{},
		platform: permission.NewMockPlatform(),
		catalog:  agent.NewMockCatalog(),
		store:    quota.NewMockStore(),
	}
	h.platform.Grant(permission.KindCamera)
	h.platform.Grant(permission.KindMicrophone)
	h.catalog.Add(&agent.Character{ID: "luna", Name: "Luna", VoiceAgentID: "agent-luna"})
	h.store.Record = &quota.Record{RemainingSeconds: seconds, Tier: tier}

	meter := quota.NewMeter(quota.MeterConfig{Store: h.store, UserID: "u1", Tier: tier})

	h.ctrl = NewController(Config{
		Permissions: permission.NewGate(h.platform, nil, nil),
		Preview:     preview.NewManager(h.capture, nil, nil),
		Driver:      h.driver,
		Resolver:    agent.NewResolver(h.catalog, nil),
		Meter:       meter,
		CharacterID: "luna",
		UserID:      "u1",
		VisualBridge: func(active bool) {
			h.mu.Lock()
			h.bridge = append(h.bridge, active)
			h.mu.Unlock()
		},
		OnQuotaExhausted: func() {
			h.mu.Lock()
			h.exhausted++
			h.mu.Unlock()
		},
		OnNotice: func(msg string) {
			h.mu.Lock()
			h.notices = append(h.notices, msg)
			h.mu.Unlock()
		},
		// Kept effectively off; countdown tests shorten it before
		// connecting.
		TickInterval: time.Hour,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) exhaustedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exhausted
}

func (h *harness) noticeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notices)
}

func (h *harness) lastBridge() (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.bridge) == 0 {
		return false, false
	}
	return h.bridge[len(h.bridge)-1], true
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestToggleVoiceStartsCall(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.ctrl.Mode() != ModeVoice {
		t.Errorf("expected voice mode, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Started) != 1 || h.driver.Started[0].AgentID != "agent-luna" {
		t.Errorf("unexpected transport starts: %+v", h.driver.Started)
	}
	if len(h.capture.Acquired) != 0 {
		t.Error("voice call must not touch the camera")
	}
	if active, ok := h.lastBridge(); ok && active {
		t.Error("visual bridge must be inactive in voice mode")
	}

	snap := h.ctrl.Snapshot()
	if snap.IsProcessing {
		t.Error("expected processing cleared after toggle")
	}
	if snap.RemainingSeconds != 30 {
		t.Errorf("expected 30s budget, got %d", snap.RemainingSeconds)
	}
}

func TestToggleVoiceEndsActiveCall(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Ended) != 1 || h.driver.Ended[0] != transport.ReasonUser {
		t.Errorf("unexpected transport ends: %+v", h.driver.Ended)
	}
	if h.ctrl.Session().Status() != transport.StatusDisconnected {
		t.Error("expected disconnected transport")
	}
	// Unspent budget is persisted on teardown.
	waitFor(t, func() bool {
		values := h.store.SavedValues()
		return len(values) == 1 && values[0] == 30
	}, "teardown quota flush")
}

func TestToggleMutualExclusion(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	entered := make(chan struct{}, 1)
	block := make(chan struct{})
	h.platform.CheckFunc = func(ctx context.Context, kind permission.Kind) (permission.Status, error) {
		entered <- struct{}{}
		<-block
		return permission.StatusGranted, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.ToggleVoice(context.Background())
	}()
	<-entered

	// A second toggle while the first is suspended in the permission
	// prompt is dropped.
	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.driver.Started) != 0 {
		t.Fatal("dropped toggle must have no side effects")
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.driver.Started) != 1 {
		t.Errorf("expected exactly one transport start, got %d", len(h.driver.Started))
	}
	if h.ctrl.Mode() != ModeVoice {
		t.Errorf("expected voice mode, got %v", h.ctrl.Mode())
	}
}

func TestTogglesDroppedWhileConnecting(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No connected event yet: the transport is still mid-connect.

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ctrl.Mode() != ModeVoice {
		t.Errorf("expected voice mode unchanged, got %v", h.ctrl.Mode())
	}
	if len(h.capture.Acquired) != 0 {
		t.Error("toggle while connecting must not acquire the camera")
	}
}

func TestCameraUpgradeKeepsSession(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)
	sessionID := h.ctrl.Session().State().SessionID

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.ctrl.Mode() != ModeCamera {
		t.Fatalf("expected camera mode, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Started) != 1 || len(h.driver.Ended) != 0 {
		t.Error("upgrade must not restart the transport session")
	}
	if got := h.ctrl.Session().State().SessionID; got != sessionID {
		t.Errorf("session id changed across upgrade: %q -> %q", sessionID, got)
	}
	if len(h.capture.Acquired) != 1 {
		t.Errorf("expected one preview acquisition, got %d", len(h.capture.Acquired))
	}
	if active, ok := h.lastBridge(); !ok || !active {
		t.Error("visual bridge must be active in camera mode")
	}

	// Toggling camera again drops back to voice with the session alive.
	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ctrl.Mode() != ModeVoice {
		t.Errorf("expected voice mode after downgrade, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Ended) != 0 {
		t.Error("downgrade must keep the transport session alive")
	}
	if stops := h.capture.Streams[0].VideoTrack.Stops(); stops != 1 {
		t.Errorf("expected preview stopped exactly once, got %d", stops)
	}
	if active, _ := h.lastBridge(); active {
		t.Error("visual bridge must deactivate on downgrade")
	}
}

func TestCameraFromIdleEndsEntirely(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	if h.ctrl.Mode() != ModeCamera {
		t.Fatalf("expected camera mode, got %v", h.ctrl.Mode())
	}
	if len(h.capture.Acquired) != 1 {
		t.Fatalf("expected one preview acquisition, got %d", len(h.capture.Acquired))
	}

	// The call began as camera, so toggling camera off ends it all.
	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Ended) != 1 {
		t.Errorf("expected transport ended, got %+v", h.driver.Ended)
	}
	if stops := h.capture.Streams[0].VideoTrack.Stops(); stops != 1 {
		t.Errorf("expected preview stopped exactly once, got %d", stops)
	}
}

func TestCameraReleasedOnTransportFailure(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)
	h.driver.StartFunc = func(ctx context.Context, agentID, userID string) error {
		return errors.New("dial tcp: connection refused")
	}

	err := h.ctrl.ToggleCamera(context.Background())
	if !errors.Is(err, transport.ErrVoiceUnavailable) {
		t.Fatalf("expected ErrVoiceUnavailable, got %v", err)
	}

	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
	if stops := h.capture.Streams[0].VideoTrack.Stops(); stops != 1 {
		t.Errorf("expected acquired preview released exactly once, got %d", stops)
	}
	if h.noticeCount() != 1 {
		t.Errorf("expected one user notice, got %d", h.noticeCount())
	}
	if active, ok := h.lastBridge(); ok && active {
		t.Error("visual bridge must not stay active after a failed start")
	}
}

func TestMicrophoneDenialAbortsStart(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)
	h.platform.DenyForever(permission.KindMicrophone)

	err := h.ctrl.ToggleVoice(context.Background())
	if !errors.Is(err, ErrMicrophoneDenied) {
		t.Fatalf("expected ErrMicrophoneDenied, got %v", err)
	}
	if len(h.driver.Started) != 0 {
		t.Error("denied microphone must not start the transport")
	}
	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
}

func TestMissingAgentAbortsStart(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)
	h.catalog.Characters = map[string]*agent.Character{}

	err := h.ctrl.ToggleVoice(context.Background())
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable, got %v", err)
	}
	if len(h.driver.Started) != 0 {
		t.Error("unresolved agent must not start the transport")
	}
	if h.noticeCount() != 1 {
		t.Errorf("expected one user notice, got %d", h.noticeCount())
	}
}

func TestPreviewFailureDoesNotBlockUpgrade(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)
	h.capture.Err = errors.New("camera in use by another application")

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ctrl.Mode() != ModeCamera {
		t.Errorf("expected camera mode despite preview failure, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Ended) != 0 {
		t.Error("upgrade must keep the session alive")
	}
}

func TestQuotaGateBlocksFreeTier(t *testing.T) {
	h := newHarness(t, 0, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.exhaustedCount() != 1 {
		t.Errorf("expected exhaustion callback once, got %d", h.exhaustedCount())
	}
	if len(h.driver.Started) != 0 {
		t.Error("exhausted budget must not start a call")
	}
	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
}

func TestExhaustionAtConnectEndsImmediately(t *testing.T) {
	h := newHarness(t, 0, quota.TierPrivileged)
	// Privileged tier is not gated at start even with a drained budget.
	h.store.Record.LastResetAt = timePtr(time.Now())

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.driver.Started) != 1 {
		t.Fatal("privileged start must not be quota-gated")
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	waitFor(t, func() bool { return len(h.driver.Ended) == 1 }, "immediate exhaustion teardown")
	if h.exhaustedCount() != 1 {
		t.Errorf("expected exhaustion callback once, got %d", h.exhaustedCount())
	}
}

func TestCountdownEndsCallAtZero(t *testing.T) {
	h := newHarness(t, 3, quota.TierFree)
	h.ctrl.tick = 2 * time.Millisecond

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	waitFor(t, func() bool { return h.exhaustedCount() >= 1 }, "countdown exhaustion")
	waitFor(t, func() bool { return h.ctrl.Mode() == ModeNone }, "call teardown")

	if h.exhaustedCount() != 1 {
		t.Errorf("expected exhaustion callback exactly once, got %d", h.exhaustedCount())
	}
	if len(h.driver.Ended) != 1 {
		t.Errorf("expected one transport end, got %+v", h.driver.Ended)
	}
	values := h.store.SavedValues()
	if len(values) == 0 || values[len(values)-1] != 0 {
		t.Errorf("expected zero persisted at exhaustion, got %v", values)
	}
}

func TestThirtySecondBudgetScenario(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)
	h.ctrl.tick = 2 * time.Millisecond

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	// First periodic write happens when the budget lands on 25.
	waitFor(t, func() bool { return len(h.store.SavedValues()) >= 1 }, "first periodic write")
	if values := h.store.SavedValues(); values[0] != 25 {
		t.Errorf("expected first persisted value 25, got %v", values)
	}

	waitFor(t, func() bool { return h.exhaustedCount() >= 1 }, "budget exhaustion")
	waitFor(t, func() bool { return h.ctrl.Mode() == ModeNone }, "call teardown")

	want := []int{25, 20, 15, 10, 5, 0}
	got := h.store.SavedValues()
	if len(got) != len(want) {
		t.Fatalf("expected persisted values %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected persisted values %v, got %v", want, got)
		}
	}
	if h.exhaustedCount() != 1 {
		t.Errorf("expected exhaustion callback exactly once, got %d", h.exhaustedCount())
	}
}

func TestRemoteDisconnectCleansUp(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	h.driver.SimulateDisconnect(transport.ReasonError)

	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode after network drop, got %v", h.ctrl.Mode())
	}
	if stops := h.capture.Streams[0].VideoTrack.Stops(); stops != 1 {
		t.Errorf("expected preview released exactly once, got %d", stops)
	}
	if h.noticeCount() != 1 {
		t.Errorf("expected one user notice, got %d", h.noticeCount())
	}
	if active, _ := h.lastBridge(); active {
		t.Error("visual bridge must deactivate on disconnect")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	h := newHarness(t, 30, quota.TierFree)

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.driver.SimulateStatus(transport.StatusConnected)

	h.ctrl.Close()
	h.ctrl.Close()

	if h.ctrl.Mode() != ModeNone {
		t.Errorf("expected idle mode, got %v", h.ctrl.Mode())
	}
	if len(h.driver.Ended) == 0 {
		t.Error("expected transport ended on close")
	}

	if err := h.ctrl.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.driver.Started) != 1 {
		t.Error("closed controller must drop further toggles")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
