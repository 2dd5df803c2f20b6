// Package controller drives the slideshow: it owns the photo sequence, the
// current/next indices, preloading, timed auto-advance, transition
// sequencing, pause state, and the metadata-overlay lifecycle. All playback
// state is confined to the single goroutine running [Controller.Run];
// network fetches and decodes happen on helper goroutines that report back
// over channels tagged with the load generation they were issued for.
package controller

import (
	"context"
	"image"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"s3-photo-frame/internal/app/input"
	"s3-photo-frame/internal/app/overlay"
	"s3-photo-frame/internal/exifdata"
	"s3-photo-frame/internal/settings"
	"s3-photo-frame/internal/source"
)

// State is the playback engine state.
type State int

const (
	// StateLoading while the photo list is being resolved.
	StateLoading State = iota
	// StateReady between transitions, sub-flagged by the pause state.
	StateReady
	// StateTransitioning while a transition window is open.
	StateTransitioning
	// StateError is terminal until a configuration change restarts
	// loading. Reachable from StateLoading only.
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateTransitioning:
		return "transitioning"
	case StateError:
		return "error"
	}
	return "unknown"
}

// DefaultTransitionWindow is the fixed transition duration. The configured
// effect changes only the visual treatment, never the timing.
const DefaultTransitionWindow = 400 * time.Millisecond

const noPhotosMessage = "No photos found. Check the source settings."

// Config holds the playback behavior derived from the saved settings.
type Config struct {
	DisplayDuration    time.Duration
	TransitionDuration time.Duration
	TransitionEffect   settings.Effect
	Shuffle            bool
	ExifDisplay        settings.ExifDisplay

	// OnMenu and OnBack are invoked from the controller goroutine when
	// the corresponding command arrives. The controller itself has no
	// opinion about what a menu is.
	OnMenu func()
	OnBack func()
}

// ConfigFromSettings derives a Config from the persisted data.
func ConfigFromSettings(d settings.Data) Config {
	return Config{
		DisplayDuration:    time.Duration(d.DisplayDuration) * time.Second,
		TransitionDuration: DefaultTransitionWindow,
		TransitionEffect:   d.TransitionEffect,
		Shuffle:            d.ShuffleMode,
		ExifDisplay:        d.ExifDisplay,
	}
}

// Display is the view the controller drives.
type Display interface {
	// Decode turns raw photo bytes into a displayable image.
	Decode(data []byte) (image.Image, error)
	// Show swaps the visible image immediately.
	Show(img image.Image)
	// Transition begins the visual treatment toward img. A nil img means
	// the incoming frame is not preloaded yet; the display may show a
	// blank or partial frame, which is accepted, not an error.
	Transition(img image.Image, effect settings.Effect, window time.Duration)
	// ShowOverlay replaces the metadata overlay content.
	ShowOverlay(lines []string)
	HideOverlay()
	// ShowMessage presents a user-visible condition such as "no photos".
	ShowMessage(msg string)
}

// Extractor produces a metadata record for one photo, nil on any failure.
type Extractor interface {
	Extract(ctx context.Context, p source.Photo) *exifdata.Record
}

var _ Extractor = (*exifdata.Extractor)(nil)

type loadResult struct {
	gen    uint64
	photos []source.Photo
	err    error
}

type preloadResult struct {
	gen   uint64
	index int
	img   image.Image
	err   error
}

type metaResult struct {
	gen   uint64
	index int
	rec   *exifdata.Record
}

type reconfigureMsg struct {
	conf Config
	src  source.Source // nil keeps the current source
}

// Controller is the slideshow playback engine. Construct with New, then call
// Run exactly once.
type Controller struct {
	conf Config
	src  source.Source
	disp Display
	meta Extractor

	state   State
	photos  []source.Photo
	current int
	next    int
	paused  bool
	shown   bool

	cache   *preloadCache
	pending map[int]struct{}

	// gen counts photo-list loads; results stamped with an older
	// generation are dropped.
	gen uint64

	cmds     chan input.Command
	reconfc  chan reconfigureMsg
	loadc    chan loadResult
	preloadc chan preloadResult
	metac    chan metaResult

	advance     *timerHandle
	transition  *timerHandle
	overlayHide *timerHandle
}

// New initializes the Controller. meta may be nil to disable the metadata
// overlay entirely.
func New(conf Config, src source.Source, disp Display, meta Extractor) *Controller {
	if conf.TransitionDuration <= 0 {
		conf.TransitionDuration = DefaultTransitionWindow
	}
	return &Controller{
		conf:        conf,
		src:         src,
		disp:        disp,
		meta:        meta,
		state:       StateLoading,
		pending:     map[int]struct{}{},
		cmds:        make(chan input.Command, 10),
		reconfc:     make(chan reconfigureMsg, 1),
		loadc:       make(chan loadResult, 1),
		preloadc:    make(chan preloadResult, 4),
		metac:       make(chan metaResult, 1),
		advance:     newTimerHandle(),
		transition:  newTimerHandle(),
		overlayHide: newTimerHandle(),
	}
}

// Command requests a user action. Safe to call from any goroutine; commands
// are dropped rather than blocking when the controller is saturated.
func (c *Controller) Command(cmd input.Command) {
	select {
	case c.cmds <- cmd:
	default:
		slog.Warn("dropping command, controller saturated", "command", cmd.String())
	}
}

// Reconfigure applies a new configuration. A non-nil src replaces the photo
// source and restarts loading.
func (c *Controller) Reconfigure(conf Config, src source.Source) {
	msg := reconfigureMsg{conf: conf, src: src}
	select {
	case c.reconfc <- msg:
	default:
		// A queued reconfigure is superseded by this one.
		select {
		case <-c.reconfc:
		default:
		}
		c.reconfc <- msg
	}
}

// Run drives the slideshow until ctx is cancelled. All state transitions
// happen here, so event ordering is the only synchronization needed.
func (c *Controller) Run(ctx context.Context) {
	c.startLoad(ctx)
	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case res := <-c.loadc:
			c.finishLoad(ctx, res)
		case cmd := <-c.cmds:
			c.handleCommand(ctx, cmd)
		case <-c.advance.C():
			c.beginTransition(ctx, c.successor())
		case <-c.transition.C():
			c.finishTransition(ctx)
		case <-c.overlayHide.C():
			c.overlayHide.Cancel()
			c.disp.HideOverlay()
		case res := <-c.preloadc:
			c.storePreload(res)
		case res := <-c.metac:
			c.applyMetadata(res)
		case msg := <-c.reconfc:
			c.reconfigure(ctx, msg)
		}
	}
}

// startLoad begins resolving the photo list. Bumping the generation
// invalidates every in-flight load, preload, and metadata fetch.
func (c *Controller) startLoad(ctx context.Context) {
	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.shown = false
	c.photos = nil
	c.pending = map[int]struct{}{}
	c.advance.Cancel()
	c.transition.Cancel()
	c.overlayHide.Cancel()
	c.disp.HideOverlay()

	src := c.src
	slog.Info("loading photo list", "generation", gen)
	go func() {
		photos, err := src.List(ctx)
		select {
		case c.loadc <- loadResult{gen: gen, photos: photos, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) finishLoad(ctx context.Context, res loadResult) {
	if res.gen != c.gen || c.state != StateLoading {
		return
	}
	if res.err != nil || len(res.photos) == 0 {
		slog.Error("photo list resolution failed", "error", res.err, "count", len(res.photos))
		c.state = StateError
		c.disp.ShowMessage(noPhotosMessage)
		return
	}

	photos := slices.Clone(res.photos)
	if c.conf.Shuffle {
		// Applied exactly once per load, not per cycle.
		shufflePhotos(photos)
	}
	c.photos = photos
	c.cache = newPreloadCache(len(photos))
	c.current = 0
	c.next = 1 % len(photos)
	c.paused = false
	c.state = StateReady
	slog.Info("photo list ready", "count", len(photos), "shuffled", c.conf.Shuffle)

	c.requestPreload(ctx, c.current)
	c.requestPreload(ctx, c.next)
	c.refreshMetadata(ctx)
	c.armAdvance()
}

func (c *Controller) handleCommand(ctx context.Context, cmd input.Command) {
	switch cmd {
	case input.Next:
		c.beginTransition(ctx, c.successor())
	case input.Previous:
		// nextIndex temporarily holds the backward target until the
		// transition commits.
		c.beginTransition(ctx, c.predecessor())
	case input.TogglePause:
		c.togglePause()
	case input.Menu:
		if c.conf.OnMenu != nil {
			c.conf.OnMenu()
		}
	case input.Back:
		if c.conf.OnBack != nil {
			c.conf.OnBack()
		}
	}
}

// beginTransition opens a transition window toward target. Re-entrant
// triggers while a transition is in flight are no-ops, as is navigation on
// lists of fewer than two photos.
func (c *Controller) beginTransition(ctx context.Context, target int) {
	if c.state != StateReady || len(c.photos) < 2 {
		return
	}
	c.next = target
	c.state = StateTransitioning
	c.advance.Cancel()

	img, ok := c.cache.get(target)
	if !ok {
		// The incoming frame may not be decoded yet; the transition
		// starts anyway and the display shows what it has.
		c.requestPreload(ctx, target)
	}
	c.disp.Transition(img, c.conf.TransitionEffect, c.conf.TransitionDuration)
	c.transition.Arm(c.conf.TransitionDuration)
}

// finishTransition commits the pending target as the new current index.
func (c *Controller) finishTransition(ctx context.Context) {
	if c.state != StateTransitioning {
		return
	}
	c.transition.Cancel()
	c.current = c.next
	c.next = (c.current + 1) % len(c.photos)
	c.state = StateReady

	if img, ok := c.cache.get(c.current); ok {
		c.disp.Show(img)
		c.shown = true
	}
	if !c.paused {
		c.armAdvance()
	}
	c.requestPreload(ctx, c.current)
	c.requestPreload(ctx, c.next)
	c.refreshMetadata(ctx)
}

// togglePause flips the pause flag. Pausing cancels the auto-advance timer;
// resuming arms a full fresh interval, not the remainder.
func (c *Controller) togglePause() {
	if c.state != StateReady && c.state != StateTransitioning {
		return
	}
	c.paused = !c.paused
	slog.Info("pause toggled", "paused", c.paused)
	if c.state != StateReady {
		// Takes effect when the in-flight transition commits.
		return
	}
	if c.paused {
		c.advance.Cancel()
	} else {
		c.armAdvance()
	}
}

// armAdvance rearms the auto-advance timer. Arm cancels the previous handle
// first, so duplicate concurrent timers cannot exist.
func (c *Controller) armAdvance() {
	c.advance.Arm(c.conf.DisplayDuration)
}

// requestPreload eagerly loads and decodes the image at index. The result
// promotes the index into the cache; a failed load is logged and dropped, a
// display glitch rather than an error.
func (c *Controller) requestPreload(ctx context.Context, index int) {
	if index < 0 || index >= len(c.photos) || c.cache.has(index) {
		return
	}
	if _, inflight := c.pending[index]; inflight {
		return
	}
	c.pending[index] = struct{}{}

	gen := c.gen
	photo := c.photos[index]
	src := c.src
	go func() {
		data, err := src.Fetch(ctx, photo)
		var img image.Image
		if err == nil {
			img, err = c.disp.Decode(data)
		}
		select {
		case c.preloadc <- preloadResult{gen: gen, index: index, img: img, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) storePreload(res preloadResult) {
	if res.gen != c.gen {
		return
	}
	delete(c.pending, res.index)
	if res.err != nil {
		slog.Warn("image preload failed", "index", res.index, "error", res.err)
		return
	}
	c.cache.add(res.index, res.img)
	if res.index == c.current && !c.shown {
		c.disp.Show(res.img)
		c.shown = true
	}
}

// refreshMetadata kicks off extraction for the current photo. The request is
// keyed to the index it was issued for so a result arriving after the user
// has advanced past it is discarded.
func (c *Controller) refreshMetadata(ctx context.Context) {
	c.overlayHide.Cancel()
	if c.meta == nil || !c.conf.ExifDisplay.Enabled {
		c.disp.HideOverlay()
		return
	}
	if c.current < 0 || c.current >= len(c.photos) {
		return
	}
	gen, index := c.gen, c.current
	photo := c.photos[index]
	meta := c.meta
	go func() {
		rec := meta.Extract(ctx, photo)
		select {
		case c.metac <- metaResult{gen: gen, index: index, rec: rec}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) applyMetadata(res metaResult) {
	if res.gen != c.gen || res.index != c.current {
		// Stale: issued for a photo that is no longer current.
		return
	}
	lines := overlay.Lines(res.rec, c.conf.ExifDisplay)
	if len(lines) == 0 {
		c.disp.HideOverlay()
		return
	}
	c.disp.ShowOverlay(lines)
	if s := c.conf.ExifDisplay.AutoHideSeconds; s > 0 {
		c.overlayHide.Arm(time.Duration(s) * time.Second)
	}
}

// reconfigure applies new settings. Source-affecting changes (bucket,
// prefix, shuffle) restart the engine from StateLoading, which also
// invalidates any in-flight load; the terminal error state is only
// recoverable this way.
func (c *Controller) reconfigure(ctx context.Context, msg reconfigureMsg) {
	durationChanged := msg.conf.DisplayDuration != c.conf.DisplayDuration
	shuffleChanged := msg.conf.Shuffle != c.conf.Shuffle
	if msg.conf.TransitionDuration <= 0 {
		msg.conf.TransitionDuration = c.conf.TransitionDuration
	}
	c.conf = msg.conf

	if msg.src != nil {
		c.src = msg.src
	}
	if msg.src != nil || shuffleChanged || c.state == StateError || c.state == StateLoading {
		c.startLoad(ctx)
		return
	}
	if durationChanged && c.state == StateReady && !c.paused {
		c.armAdvance()
	}
	c.refreshMetadata(ctx)
}

func (c *Controller) teardown() {
	c.advance.Cancel()
	c.transition.Cancel()
	c.overlayHide.Cancel()
}

func (c *Controller) successor() int {
	if len(c.photos) == 0 {
		return 0
	}
	return (c.current + 1) % len(c.photos)
}

func (c *Controller) predecessor() int {
	if len(c.photos) == 0 {
		return 0
	}
	return (c.current - 1 + len(c.photos)) % len(c.photos)
}

// shufflePhotos applies a uniform random permutation in place.
func shufflePhotos(photos []source.Photo) {
	rand.Shuffle(len(photos), func(i, j int) {
		photos[i], photos[j] = photos[j], photos[i]
	})
}
