package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"

	"s3-photo-frame/internal/app/controller"
	"s3-photo-frame/internal/app/display"
	"s3-photo-frame/internal/app/input"
	"s3-photo-frame/internal/exifdata"
	"s3-photo-frame/internal/settings"
	"s3-photo-frame/internal/source"
)

// settingsDebounce coalesces bursts of file events from editors and our own
// temp-file-then-rename saves into a single reload.
const settingsDebounce = 500 * time.Millisecond

// Config is the top-level deployment configuration that is loaded via TOML
// decoding of the file specified by the PHOTO_FRAME_CONFIG environment
// variable (or "config.toml" if empty). A missing file is fine; everything
// has a workable zero value.
//
// This covers install-time concerns only. The bucket, playback, and overlay
// choices live in the settings blob and are editable from the on-screen menu.
type Config struct {
	S3      source.S3Config
	Geocode exifdata.GeocodeConfig
	Display display.Config
	App     struct {
		// SettingsPath overrides the default settings blob location.
		SettingsPath string
		// CacheDir overrides where fetched photos are cached on disk.
		CacheDir string
		// MockPhotoCount sizes the built-in placeholder set used when
		// no bucket is configured.
		MockPhotoCount int
	}
}

type photoFrame struct {
	conf  Config
	store *settings.FileStore
	src   *switchableSource
	disp  *display.Display
	ctrl  *controller.Controller
	keys  *input.Dispatcher
	form  *settingsForm

	mu   sync.Mutex
	last settings.Data
}

func Run() error {
	conf, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Debug level since conf has sensitive values.
	slog.Debug("loaded config", "config", conf)

	app, err := InitApp(*conf)
	if err != nil {
		return fmt.Errorf("failed to init app: %w", err)
	}
	slog.Info("successfully initialized app")
	return app.run()
}

func LoadConfig() (*Config, error) {
	// Determine config file path.
	configFilePath := "config.toml"
	if envConfigFilePath := os.Getenv("PHOTO_FRAME_CONFIG"); envConfigFilePath != "" {
		configFilePath = envConfigFilePath
	}

	var conf Config
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		slog.Info("no config file, using defaults", "path", configFilePath)
	} else if err != nil {
		return nil, err
	} else if _, err := toml.DecodeFile(configFilePath, &conf); err != nil {
		return nil, err
	}

	// Load values from environment variables.
	conf.S3.HydrateFromEnv()

	return &conf, nil
}

func InitApp(conf Config) (*photoFrame, error) {
	var store *settings.FileStore
	if conf.App.SettingsPath != "" {
		store = settings.NewFileStoreAt(conf.App.SettingsPath)
	} else {
		var err error
		store, err = settings.NewFileStore()
		if err != nil {
			return nil, fmt.Errorf("failed to locate settings: %w", err)
		}
	}

	userConf, err := store.Load()
	if err != nil {
		slog.Warn("failed to load settings, using defaults", "error", err)
	}
	if userConf == nil {
		userConf = settings.Default()
	}
	slog.Info("loaded settings", "path", store.Path(), "version", userConf.Version)

	pf := &photoFrame{
		conf:  conf,
		store: store,
		last:  userConf.Data,
	}

	src, err := pf.buildSource(context.Background(), userConf.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo source: %w", err)
	}
	pf.src = &switchableSource{src: src}

	dispConf := conf.Display
	dispConf.OverlayPosition = userConf.Data.ExifDisplay.Position
	dispConf.OverlayStyle = userConf.Data.ExifDisplay.Style
	pf.disp = display.New(dispConf)

	meta := exifdata.NewExtractor(pf.src, exifdata.NewGeocoder(conf.Geocode))

	pf.form = newSettingsForm(pf)
	cc := controller.ConfigFromSettings(userConf.Data)
	cc.OnMenu = pf.form.Open
	cc.OnBack = pf.form.Close
	pf.ctrl = controller.New(cc, pf.src, pf.disp, meta)

	pf.keys = input.NewDispatcher()
	pf.keys.SetGate(pf.form.IsOpen)
	pf.keys.Subscribe(pf.ctrl.Command)
	pf.disp.SetKeyHandler(pf.keys.HandleKey)

	return pf, nil
}

func (pf *photoFrame) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pf.ctrl.Run(ctx)
	go pf.watchSettings(ctx)

	pf.disp.ShowAndRun()
	return nil
}

// buildSource maps the persisted source fields onto the install-time S3
// connection values. An empty bucket selects the placeholder source.
func (pf *photoFrame) buildSource(ctx context.Context, d settings.Data) (source.Source, error) {
	if d.S3Bucket == "" {
		slog.Info("no bucket configured, using placeholder photos")
		return source.NewMockSource(pf.conf.App.MockPhotoCount), nil
	}
	sc := pf.conf.S3
	sc.Bucket = d.S3Bucket
	sc.Region = d.S3Region
	sc.Prefix = d.S3Prefix
	src, err := source.NewS3Source(ctx, sc)
	if err != nil {
		return nil, err
	}

	cacheDir := pf.conf.App.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(xdg.CacheHome, "s3-photo-frame")
	}
	cached, err := source.NewCachedSource(src, cacheDir)
	if err != nil {
		slog.Warn("disk cache unavailable, fetching directly", "error", err)
		return src, nil
	}
	return cached, nil
}

// applySettings pushes freshly saved or externally edited settings into the
// running pieces. Only a source field change restarts the photo list; other
// changes reconfigure playback in place.
func (pf *photoFrame) applySettings(data settings.Data) {
	pf.mu.Lock()
	prev := pf.last
	pf.last = data
	pf.mu.Unlock()

	cc := controller.ConfigFromSettings(data)
	cc.OnMenu = pf.form.Open
	cc.OnBack = pf.form.Close

	if sourceChanged(prev, data) {
		src, err := pf.buildSource(context.Background(), data)
		if err != nil {
			slog.Error("failed to build photo source, keeping previous", "error", err)
			pf.ctrl.Reconfigure(cc, nil)
		} else {
			pf.src.Swap(src)
			pf.ctrl.Reconfigure(cc, pf.src)
		}
	} else {
		pf.ctrl.Reconfigure(cc, nil)
	}

	pf.disp.ApplyOverlayStyle(data.ExifDisplay.Position, data.ExifDisplay.Style)
}

func sourceChanged(a, b settings.Data) bool {
	return a.S3Bucket != b.S3Bucket || a.S3Region != b.S3Region || a.S3Prefix != b.S3Prefix
}

// watchSettings reloads the settings blob when it changes on disk, so edits
// made over ssh or by a sync tool take effect without a restart. The watch is
// on the directory; save replaces the file, which would kill a file watch.
func (pf *photoFrame) watchSettings(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("settings watch unavailable", "error", err)
		return
	}
	defer watcher.Close()

	name := pf.store.Path()
	if err := watcher.Add(filepath.Dir(name)); err != nil {
		slog.Warn("settings watch unavailable", "error", err)
		return
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(name) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				continue
			}
			pending = time.After(settingsDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("settings watch error", "error", err)
		case <-pending:
			pending = nil
			pf.reloadSettings()
		}
	}
}

func (pf *photoFrame) reloadSettings() {
	userConf, err := pf.store.Load()
	if err != nil {
		slog.Warn("failed to reload settings", "error", err)
		return
	}
	if userConf == nil {
		return
	}
	pf.mu.Lock()
	same := userConf.Data == pf.last
	pf.mu.Unlock()
	if same {
		// Our own save just landed.
		return
	}
	slog.Info("settings file changed, applying")
	pf.applySettings(userConf.Data)
}

// switchableSource lets the running controller and metadata extractor follow
// a source swap without being rebuilt. In-flight fetches on the old source
// finish against it; only new calls see the replacement.
type switchableSource struct {
	mu  sync.RWMutex
	src source.Source
}

func (s *switchableSource) Swap(src source.Source) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *switchableSource) List(ctx context.Context) ([]source.Photo, error) {
	s.mu.RLock()
	src := s.src
	s.mu.RUnlock()
	return src.List(ctx)
}

func (s *switchableSource) Fetch(ctx context.Context, p source.Photo) ([]byte, error) {
	s.mu.RLock()
	src := s.src
	s.mu.RUnlock()
	return src.Fetch(ctx, p)
}
