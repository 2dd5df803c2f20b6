package controller

import (
	"context"
	"fmt"
	"image"
	"sort"
	"testing"
	"time"

	"s3-photo-frame/internal/app/input"
	"s3-photo-frame/internal/exifdata"
	"s3-photo-frame/internal/settings"
	"s3-photo-frame/internal/source"
)

// fakeSource serves a fixed photo list from memory.
type fakeSource struct {
	photos []source.Photo
	err    error
}

func (f *fakeSource) List(context.Context) ([]source.Photo, error) {
	return f.photos, f.err
}

func (f *fakeSource) Fetch(_ context.Context, p source.Photo) ([]byte, error) {
	return []byte(p.Key), nil
}

// fakeDisplay records the calls made by the controller.
type fakeDisplay struct {
	shows       int
	transitions int
	overlays    [][]string
	hides       int
	messages    []string
}

func (d *fakeDisplay) Decode([]byte) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}
func (d *fakeDisplay) Show(image.Image) { d.shows++ }
func (d *fakeDisplay) Transition(image.Image, settings.Effect, time.Duration) {
	d.transitions++
}
func (d *fakeDisplay) ShowOverlay(lines []string) { d.overlays = append(d.overlays, lines) }
func (d *fakeDisplay) HideOverlay()               { d.hides++ }
func (d *fakeDisplay) ShowMessage(msg string)     { d.messages = append(d.messages, msg) }

func testPhotos(n int) []source.Photo {
	photos := make([]source.Photo, 0, n)
	for i := range n {
		photos = append(photos, source.Photo{Key: fmt.Sprintf("photo-%02d.jpg", i)})
	}
	return photos
}

// newTestController builds a controller and completes the load step
// synchronously, bypassing the Run loop so tests drive the state machine
// directly.
func newTestController(t *testing.T, conf Config, photos []source.Photo) (*Controller, *fakeDisplay) {
	t.Helper()
	if conf.DisplayDuration == 0 {
		conf.DisplayDuration = 10 * time.Second
	}
	disp := &fakeDisplay{}
	c := New(conf, &fakeSource{photos: photos}, disp, nil)
	c.gen = 1
	c.finishLoad(context.Background(), loadResult{gen: 1, photos: photos})
	return c, disp
}

func TestScenarioThreePhotos(t *testing.T) {
	ctx := context.Background()
	c, disp := newTestController(t, Config{}, testPhotos(3))

	if c.state != StateReady {
		t.Fatalf("expected ready after load, got %s", c.state)
	}
	if c.current != 0 || c.next != 1 {
		t.Fatalf("expected current=0 next=1, got current=%d next=%d", c.current, c.next)
	}
	if !c.advance.Armed() {
		t.Fatal("auto-advance timer should be armed after load")
	}

	c.handleCommand(ctx, input.Next)
	if c.state != StateTransitioning {
		t.Fatalf("expected transitioning, got %s", c.state)
	}
	if c.next != 1 {
		t.Fatalf("transition target should be 1, got %d", c.next)
	}
	if disp.transitions != 1 {
		t.Fatalf("expected 1 transition call, got %d", disp.transitions)
	}
	if c.advance.Armed() {
		t.Fatal("auto-advance must be cancelled during a transition")
	}

	c.finishTransition(ctx)
	if c.state != StateReady {
		t.Fatalf("expected ready after transition window, got %s", c.state)
	}
	if c.current != 1 || c.next != 2 {
		t.Fatalf("expected current=1 next=2, got current=%d next=%d", c.current, c.next)
	}
	if !c.advance.Armed() {
		t.Fatal("auto-advance timer should be rearmed")
	}
}

func TestNextWrapsAround(t *testing.T) {
	ctx := context.Background()
	const n = 5
	c, _ := newTestController(t, Config{}, testPhotos(n))

	for range n {
		c.handleCommand(ctx, input.Next)
		c.finishTransition(ctx)
	}
	if c.current != 0 {
		t.Fatalf("expected to wrap back to 0 after %d nexts, got %d", n, c.current)
	}
}

func TestPreviousWrapsBackward(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{}, testPhotos(3))

	c.handleCommand(ctx, input.Previous)
	// nextIndex temporarily holds the backward target.
	if c.next != 2 {
		t.Fatalf("expected backward target 2, got %d", c.next)
	}
	c.finishTransition(ctx)
	if c.current != 2 || c.next != 0 {
		t.Fatalf("expected current=2 next=0, got current=%d next=%d", c.current, c.next)
	}
}

func TestTransitionReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	c, disp := newTestController(t, Config{}, testPhotos(3))

	c.handleCommand(ctx, input.Next)
	c.handleCommand(ctx, input.Next)
	c.handleCommand(ctx, input.Previous)

	if disp.transitions != 1 {
		t.Fatalf("re-entrant transition triggers must be no-ops, got %d transitions", disp.transitions)
	}
	if c.next != 1 {
		t.Fatalf("pending target should be unchanged, got %d", c.next)
	}
}

func TestPauseSuspendsAdvance(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{}, testPhotos(3))

	c.handleCommand(ctx, input.TogglePause)
	if !c.paused {
		t.Fatal("expected paused")
	}
	if c.advance.Armed() {
		t.Fatal("pausing must cancel the auto-advance timer")
	}

	// Manual navigation still works while paused.
	c.handleCommand(ctx, input.Next)
	c.finishTransition(ctx)
	if c.current != 1 {
		t.Fatalf("manual navigation should advance while paused, got %d", c.current)
	}
	if c.advance.Armed() {
		t.Fatal("auto-advance must stay cancelled while paused")
	}
}

func TestPauseToggleTwiceRearmsFullInterval(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{}, testPhotos(3))

	c.handleCommand(ctx, input.TogglePause)
	c.handleCommand(ctx, input.TogglePause)
	if c.paused {
		t.Fatal("expected playing after double toggle")
	}
	if !c.advance.Armed() {
		t.Fatal("resuming must arm a fresh full interval")
	}
}

func TestPauseDuringTransition(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{}, testPhotos(3))

	c.handleCommand(ctx, input.Next)
	c.handleCommand(ctx, input.TogglePause)
	c.finishTransition(ctx)

	if c.state != StateReady {
		t.Fatalf("expected ready, got %s", c.state)
	}
	if c.advance.Armed() {
		t.Fatal("pause requested mid-transition must leave the timer disarmed")
	}
}

func TestEmptyListEntersErrorState(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDisplay{}
	c := New(Config{DisplayDuration: time.Second}, &fakeSource{}, disp, nil)
	c.gen = 1
	c.finishLoad(ctx, loadResult{gen: 1})

	if c.state != StateError {
		t.Fatalf("expected error state, got %s", c.state)
	}
	if len(disp.messages) != 1 {
		t.Fatalf("expected a user-visible message, got %v", disp.messages)
	}

	// Navigation is a no-op in the error state.
	c.handleCommand(ctx, input.Next)
	c.handleCommand(ctx, input.Previous)
	if c.state != StateError || disp.transitions != 0 {
		t.Fatal("navigation must not leave the error state")
	}
}

func TestSingletonListNavigationNoop(t *testing.T) {
	ctx := context.Background()
	c, disp := newTestController(t, Config{}, testPhotos(1))

	c.handleCommand(ctx, input.Next)
	c.handleCommand(ctx, input.Previous)
	if c.state != StateReady || disp.transitions != 0 {
		t.Fatal("navigation on a single-photo list must be a no-op")
	}
}

func TestStaleLoadResultDropped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{}, testPhotos(3))

	// A load result from a superseded generation must not replace the
	// photo list.
	c.finishLoad(ctx, loadResult{gen: 0, photos: testPhotos(9)})
	if len(c.photos) != 3 {
		t.Fatalf("stale load applied, photo count %d", len(c.photos))
	}
}

func TestStaleMetadataDropped(t *testing.T) {
	conf := Config{
		ExifDisplay: settings.ExifDisplay{Enabled: true, ShowCamera: true},
	}
	c, disp := newTestController(t, conf, testPhotos(3))

	model := "EOS R5"
	rec := &exifdata.Record{Model: &model}

	// Issued for index 2 while current is 0: dropped.
	c.applyMetadata(metaResult{gen: c.gen, index: 2, rec: rec})
	if len(disp.overlays) != 0 {
		t.Fatal("metadata for a non-current index must be discarded")
	}

	// Issued for a stale generation: dropped.
	c.applyMetadata(metaResult{gen: c.gen - 1, index: 0, rec: rec})
	if len(disp.overlays) != 0 {
		t.Fatal("metadata for a stale generation must be discarded")
	}

	// Fresh result for the current index: applied.
	c.applyMetadata(metaResult{gen: c.gen, index: 0, rec: rec})
	if len(disp.overlays) != 1 {
		t.Fatalf("expected overlay update, got %d", len(disp.overlays))
	}
}

func TestPreloadPromotesOnlyOnSuccess(t *testing.T) {
	c, disp := newTestController(t, Config{}, testPhotos(3))

	c.storePreload(preloadResult{gen: c.gen, index: 2, err: context.DeadlineExceeded})
	if c.cache.has(2) {
		t.Fatal("failed preloads must not enter the cache")
	}

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	c.storePreload(preloadResult{gen: c.gen, index: 0, img: img})
	if !c.cache.has(0) {
		t.Fatal("successful preload should enter the cache")
	}
	if disp.shows == 0 {
		t.Fatal("first confirmed preload of the current index should be shown")
	}

	// Stale generation dropped.
	c.storePreload(preloadResult{gen: c.gen - 1, index: 1, img: img})
	if c.cache.has(1) {
		t.Fatal("stale preloads must be discarded")
	}
}

func TestReconfigureRecoversFromError(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDisplay{}
	c := New(Config{DisplayDuration: time.Second}, &fakeSource{}, disp, nil)
	c.gen = 1
	c.finishLoad(ctx, loadResult{gen: 1})
	if c.state != StateError {
		t.Fatalf("expected error state, got %s", c.state)
	}

	c.reconfigure(ctx, reconfigureMsg{
		conf: Config{DisplayDuration: time.Second},
		src:  &fakeSource{photos: testPhotos(2)},
	})
	if c.state != StateLoading {
		t.Fatalf("configuration change must restart loading, got %s", c.state)
	}
	if c.gen != 2 {
		t.Fatalf("restart must bump the load generation, got %d", c.gen)
	}
}

func TestReconfigureDurationRearms(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{DisplayDuration: 10 * time.Second}, testPhotos(3))

	c.reconfigure(ctx, reconfigureMsg{conf: Config{DisplayDuration: 20 * time.Second}})
	if c.state != StateReady {
		t.Fatalf("duration-only change must not restart loading, got %s", c.state)
	}
	if !c.advance.Armed() {
		t.Fatal("duration change should rearm the advance timer")
	}
	if c.conf.DisplayDuration != 20*time.Second {
		t.Fatalf("expected updated duration, got %s", c.conf.DisplayDuration)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	photos := testPhotos(50)
	shuffled := make([]source.Photo, len(photos))
	copy(shuffled, photos)
	shufflePhotos(shuffled)

	keys := func(ps []source.Photo) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Key)
		}
		sort.Strings(out)
		return out
	}
	a, b := keys(photos), keys(shuffled)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("shuffle must be a permutation; multiset differs at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestShuffleAppliedOncePerLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, Config{Shuffle: true}, testPhotos(10))

	order := func() []string {
		out := make([]string, 0, len(c.photos))
		for _, p := range c.photos {
			out = append(out, p.Key)
		}
		return out
	}
	before := order()

	// Cycling through the whole list must not reshuffle.
	for range len(c.photos) {
		c.handleCommand(ctx, input.Next)
		c.finishTransition(ctx)
	}
	after := order()
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("sequence must stay fixed after the load-time shuffle")
		}
	}
}
