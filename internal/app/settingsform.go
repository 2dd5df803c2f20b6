package app

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"s3-photo-frame/internal/settings"
)

// settingsForm is the modal editor opened by the menu command. While it is
// open it owns the remote keys; the dispatcher gate suppresses slideshow
// commands until it closes.
type settingsForm struct {
	pf    *photoFrame
	open  atomic.Bool
	popup *widget.PopUp
}

func newSettingsForm(pf *photoFrame) *settingsForm {
	return &settingsForm{pf: pf}
}

func (f *settingsForm) IsOpen() bool {
	return f.open.Load()
}

// Open shows the form. Safe to call from any goroutine; a second call while
// already open is a no-op.
func (f *settingsForm) Open() {
	if !f.open.CompareAndSwap(false, true) {
		return
	}
	fyne.Do(f.show)
}

// Close hides the form without saving.
func (f *settingsForm) Close() {
	if !f.open.CompareAndSwap(true, false) {
		return
	}
	fyne.Do(func() {
		if f.popup != nil {
			f.popup.Hide()
			f.popup = nil
		}
	})
}

func (f *settingsForm) show() {
	f.pf.mu.Lock()
	d := f.pf.last
	f.pf.mu.Unlock()

	bucket := widget.NewEntry()
	bucket.SetText(d.S3Bucket)
	bucket.SetPlaceHolder("photo bucket name")
	region := widget.NewEntry()
	region.SetText(d.S3Region)
	prefix := widget.NewEntry()
	prefix.SetText(d.S3Prefix)

	duration := widget.NewEntry()
	duration.SetText(strconv.Itoa(d.DisplayDuration))
	effect := widget.NewSelect([]string{
		string(settings.EffectFade),
		string(settings.EffectSlide),
		string(settings.EffectZoom),
	}, nil)
	effect.SetSelected(string(d.TransitionEffect))
	shuffle := widget.NewCheck("Shuffle", nil)
	shuffle.SetChecked(d.ShuffleMode)

	overlay := widget.NewCheck("Show photo info", nil)
	overlay.SetChecked(d.ExifDisplay.Enabled)
	showDate := widget.NewCheck("Date", nil)
	showDate.SetChecked(d.ExifDisplay.ShowDate)
	showLocation := widget.NewCheck("Location", nil)
	showLocation.SetChecked(d.ExifDisplay.ShowLocation)
	showCamera := widget.NewCheck("Camera", nil)
	showCamera.SetChecked(d.ExifDisplay.ShowCamera)
	showExposure := widget.NewCheck("Exposure", nil)
	showExposure.SetChecked(d.ExifDisplay.ShowExposure)
	position := widget.NewSelect([]string{
		string(settings.PositionTopLeft),
		string(settings.PositionTopRight),
		string(settings.PositionBottomLeft),
		string(settings.PositionBottomRight),
	}, nil)
	position.SetSelected(string(d.ExifDisplay.Position))
	style := widget.NewSelect([]string{
		string(settings.StylePlain),
		string(settings.StyleBadge),
	}, nil)
	style.SetSelected(string(d.ExifDisplay.Style))
	autoHide := widget.NewEntry()
	autoHide.SetText(strconv.Itoa(d.ExifDisplay.AutoHideSeconds))

	form := widget.NewForm(
		widget.NewFormItem("Bucket", bucket),
		widget.NewFormItem("Region", region),
		widget.NewFormItem("Prefix", prefix),
		widget.NewFormItem("Seconds per photo", duration),
		widget.NewFormItem("Transition", effect),
		widget.NewFormItem("", shuffle),
		widget.NewFormItem("", overlay),
		widget.NewFormItem("", container.NewHBox(showDate, showLocation, showCamera, showExposure)),
		widget.NewFormItem("Info position", position),
		widget.NewFormItem("Info style", style),
		widget.NewFormItem("Hide info after (s)", autoHide),
	)
	form.SubmitText = "Save"
	form.CancelText = "Cancel"
	form.OnCancel = f.Close
	form.OnSubmit = func() {
		next := d
		next.S3Bucket = bucket.Text
		next.S3Region = region.Text
		next.S3Prefix = prefix.Text
		next.TransitionEffect = settings.Effect(effect.Selected)
		next.ShuffleMode = shuffle.Checked
		next.ExifDisplay.Enabled = overlay.Checked
		next.ExifDisplay.ShowDate = showDate.Checked
		next.ExifDisplay.ShowLocation = showLocation.Checked
		next.ExifDisplay.ShowCamera = showCamera.Checked
		next.ExifDisplay.ShowExposure = showExposure.Checked
		next.ExifDisplay.Position = settings.Position(position.Selected)
		next.ExifDisplay.Style = settings.Style(style.Selected)

		var err error
		if next.DisplayDuration, err = strconv.Atoi(duration.Text); err != nil {
			dialog.ShowError(fmt.Errorf("seconds per photo must be a number"), f.pf.disp.Window())
			return
		}
		if next.ExifDisplay.AutoHideSeconds, err = strconv.Atoi(autoHide.Text); err != nil {
			dialog.ShowError(fmt.Errorf("hide delay must be a number"), f.pf.disp.Window())
			return
		}
		f.save(next)
	}

	content := container.NewVBox(
		widget.NewLabelWithStyle("Settings", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		form,
	)
	f.popup = widget.NewModalPopUp(content, f.pf.disp.Window().Canvas())
	f.popup.Resize(fyne.NewSize(520, f.popup.MinSize().Height))
	f.popup.Show()
}

// save persists and applies the edited values. The form stays open on
// failure so nothing the user typed is lost; the slideshow keeps running on
// the previous settings either way.
func (f *settingsForm) save(data settings.Data) {
	conf := &settings.Configuration{
		Version: settings.CurrentVersion,
		Data:    data,
		SavedAt: time.Now(),
	}
	if err := f.pf.store.Save(conf); err != nil {
		slog.Error("failed to save settings", "error", err)
		dialog.ShowError(fmt.Errorf("settings were not saved: %w", err), f.pf.disp.Window())
		return
	}
	slog.Info("saved settings", "path", f.pf.store.Path())
	f.Close()
	f.pf.applySettings(data)
}
