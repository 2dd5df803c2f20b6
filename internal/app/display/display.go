// Package display renders the slideshow window: the current photo, the
// transition treatment, the metadata overlay, and user-visible messages.
package display

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"github.com/disintegration/imaging"

	"s3-photo-frame/internal/settings"
)

type Config struct {
	// ImageScale resizes decoded images relative to their native height.
	// 1.0 keeps the original size.
	ImageScale float32

	// Windowed disables fullscreen, for development.
	Windowed bool

	// Overlay placement and style.
	OverlayPosition settings.Position
	OverlayStyle    settings.Style
}

// Display owns the fyne window. All mutating methods are safe to call from
// any goroutine; they hop onto the UI thread internally.
type Display struct {
	conf Config
	app  fyne.App
	win  fyne.Window

	cur      *canvas.Image
	incoming *canvas.Image
	fx       *fyne.Container

	message *canvas.Text

	overlayPos   settings.Position
	overlayStyle settings.Style
	overlayBox   *fyne.Container
	overlayRows  *fyne.Container

	anim *fyne.Animation
}

func New(conf Config) *Display {
	if conf.ImageScale <= 0 {
		conf.ImageScale = 1.0
	}
	a := app.New()
	// TODO: Make a custom theme since DarkTheme is deprecated.
	a.Settings().SetTheme(theme.DarkTheme())
	a.Driver().SetDisableScreenBlanking(true)
	win := a.NewWindow("s3-photo-frame")
	win.SetFullScreen(!conf.Windowed)

	cur := canvas.NewImageFromResource(nil)
	cur.FillMode = canvas.ImageFillContain
	cur.ScaleMode = canvas.ImageScaleSmooth

	incoming := canvas.NewImageFromResource(nil)
	incoming.FillMode = canvas.ImageFillContain
	incoming.ScaleMode = canvas.ImageScaleSmooth
	incoming.Hide()
	// The effect layer is layout-free so transitions can move and resize
	// the incoming image freely.
	fx := container.NewWithoutLayout(incoming)

	message := canvas.NewText("", color.White)
	message.TextSize = 24
	message.Hide()

	d := &Display{
		conf:     conf,
		app:      a,
		win:      win,
		cur:      cur,
		incoming: incoming,
		fx:       fx,
		message:  message,
	}
	d.overlayPos = conf.OverlayPosition
	d.overlayStyle = conf.OverlayStyle
	d.rebuildContent()
	return d
}

// rebuildContent lays the window out from scratch. Called at construction
// and when the overlay placement changes.
func (d *Display) rebuildContent() {
	d.overlayRows = container.NewVBox()
	d.overlayBox = d.buildOverlayBox()
	d.overlayBox.Hide()
	d.win.SetContent(container.NewStack(
		d.cur,
		d.fx,
		container.NewCenter(d.message),
		d.overlayAnchor(),
	))
}

// SetKeyHandler wires the raw typed-key callback, typically the input
// dispatcher's HandleKey.
func (d *Display) SetKeyHandler(f func(*fyne.KeyEvent)) {
	d.win.Canvas().SetOnTypedKey(f)
}

// Window exposes the underlying window for dialogs and the settings form.
func (d *Display) Window() fyne.Window { return d.win }

// ApplyOverlayStyle applies a new overlay placement and style, rebuilding
// the window content.
func (d *Display) ApplyOverlayStyle(pos settings.Position, style settings.Style) {
	fyne.Do(func() {
		d.overlayPos = pos
		d.overlayStyle = style
		d.rebuildContent()
	})
}

// Decode turns raw photo bytes into a display-ready image, resized per the
// configured scale.
func (d *Display) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if d.conf.ImageScale != 1.0 {
		resizeHeight := int(float32(img.Bounds().Dy()) * d.conf.ImageScale)
		img = imaging.Resize(img, 0, resizeHeight, imaging.Lanczos)
	}
	return img, nil
}

// Show swaps the visible photo immediately, ending any running transition.
func (d *Display) Show(img image.Image) {
	fyne.Do(func() {
		d.stopAnim()
		d.message.Hide()
		d.incoming.Hide()
		d.cur.Image = img
		d.cur.Translucency = 0
		d.cur.Refresh()
	})
}

// Transition begins the visual treatment toward img over the given window.
// The caller commits the frame with Show when the window closes; a nil img
// (preload not confirmed yet) leaves the current frame up until then.
func (d *Display) Transition(img image.Image, effect settings.Effect, window time.Duration) {
	if img == nil {
		return
	}
	fyne.Do(func() {
		d.stopAnim()
		d.incoming.Image = img
		d.incoming.Translucency = 0
		size := d.win.Canvas().Size()

		switch effect {
		case settings.EffectSlide:
			d.incoming.Resize(size)
			start := fyne.NewPos(size.Width, 0)
			d.incoming.Move(start)
			d.incoming.Show()
			d.anim = canvas.NewPositionAnimation(start, fyne.NewPos(0, 0), window, func(p fyne.Position) {
				d.incoming.Move(p)
				canvas.Refresh(d.incoming)
			})
		case settings.EffectZoom:
			d.incoming.Move(fyne.NewPos(size.Width/4, size.Height/4))
			d.incoming.Resize(fyne.NewSize(size.Width/2, size.Height/2))
			d.incoming.Show()
			d.anim = fyne.NewAnimation(window, func(f float32) {
				half := (1 - f) / 2
				d.incoming.Move(fyne.NewPos(size.Width*half/2, size.Height*half/2))
				d.incoming.Resize(fyne.NewSize(size.Width*(0.5+f/2), size.Height*(0.5+f/2)))
				canvas.Refresh(d.incoming)
			})
		default: // fade
			d.incoming.Resize(size)
			d.incoming.Move(fyne.NewPos(0, 0))
			d.incoming.Translucency = 1
			d.incoming.Show()
			d.anim = fyne.NewAnimation(window, func(f float32) {
				d.incoming.Translucency = float64(1 - f)
				canvas.Refresh(d.incoming)
			})
		}
		d.anim.Curve = fyne.AnimationEaseInOut
		d.anim.Start()
	})
}

// ShowOverlay replaces the metadata overlay lines.
func (d *Display) ShowOverlay(lines []string) {
	fyne.Do(func() {
		d.overlayRows.Objects = d.overlayRows.Objects[:0]
		for i, line := range lines {
			text := canvas.NewText(line, color.White)
			text.TextSize = 18
			if i == 0 {
				text.TextSize = 22
				text.TextStyle = fyne.TextStyle{Bold: true}
			}
			d.overlayRows.Objects = append(d.overlayRows.Objects, text)
		}
		d.overlayRows.Refresh()
		d.overlayBox.Show()
	})
}

// HideOverlay clears the metadata overlay.
func (d *Display) HideOverlay() {
	fyne.Do(func() {
		d.overlayBox.Hide()
	})
}

// ShowMessage presents a user-visible condition, e.g. when no photos could
// be resolved.
func (d *Display) ShowMessage(msg string) {
	slog.Info("showing message", "message", msg)
	fyne.Do(func() {
		d.stopAnim()
		d.incoming.Hide()
		d.cur.Image = nil
		d.cur.Refresh()
		d.message.Text = msg
		d.message.Show()
		d.message.Refresh()
	})
}

// ShowAndRun hands control to the fyne main loop. Blocks until the window
// closes.
func (d *Display) ShowAndRun() {
	d.win.ShowAndRun()
}

func (d *Display) stopAnim() {
	if d.anim != nil {
		d.anim.Stop()
		d.anim = nil
	}
	d.incoming.Hide()
}

// buildOverlayBox wraps the overlay rows in the configured style.
func (d *Display) buildOverlayBox() *fyne.Container {
	if d.overlayStyle == settings.StylePlain {
		return container.NewPadded(d.overlayRows)
	}
	bg := canvas.NewRectangle(color.NRGBA{A: 0xa0})
	bg.CornerRadius = 8
	return container.NewPadded(container.NewStack(bg, container.NewPadded(d.overlayRows)))
}

// overlayAnchor pins the overlay box to the configured screen corner using
// spacers.
func (d *Display) overlayAnchor() fyne.CanvasObject {
	box := d.overlayBox
	switch d.overlayPos {
	case settings.PositionTopLeft:
		return container.NewVBox(container.NewHBox(box, layout.NewSpacer()), layout.NewSpacer())
	case settings.PositionTopRight:
		return container.NewVBox(container.NewHBox(layout.NewSpacer(), box), layout.NewSpacer())
	case settings.PositionBottomRight:
		return container.NewVBox(layout.NewSpacer(), container.NewHBox(layout.NewSpacer(), box))
	default: // bottom-left
		return container.NewVBox(layout.NewSpacer(), container.NewHBox(box, layout.NewSpacer()))
	}
}
