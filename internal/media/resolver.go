package media

import (
	"log/slog"
	"math"
	"net/url"
	"strings"

	"vidash/internal/logging"
	"vidash/internal/snapshot"
)

// LoadErrorText is shown while the attached source cannot be played.
const LoadErrorText = "Video failed to load. Check the URL or format in the event log."

// seekEndMargin keeps restored positions clear of end-of-stream.
const seekEndMargin = 0.2

// Paths returns the converted and raw media paths for snap. Either may be
// empty.
func Paths(snap snapshot.Snapshot) (primary, fallback string) {
	if snap.Converted != "" {
		primary = "/converted/" + url.PathEscape(snap.Converted)
	}
	if snap.Video != "" {
		fallback = "/video/" + url.PathEscape(snap.Video)
	}
	return primary, fallback
}

// Options configures a Resolver.
type Options struct {
	// URLFor maps a server-relative media path to the URL handed to the
	// player. Defaults to the identity.
	URLFor func(path string) string
	Logger *slog.Logger
}

// Resolver keeps the player attached to the right source.
type Resolver struct {
	player Player
	urlFor func(string) string
	logger *slog.Logger

	mediaKey      string
	rawKey        string
	primary       string
	fallback      string
	failedPrimary string
	pendingSeek   float64
	hasPending    bool
	loadError     bool
	userUnmuted   bool
}

// NewResolver binds a resolver to player.
func NewResolver(player Player, opts Options) *Resolver {
	urlFor := opts.URLFor
	if urlFor == nil {
		urlFor = func(path string) string { return path }
	}
	return &Resolver{
		player: player,
		urlFor: urlFor,
		logger: logging.NewComponentLogger(opts.Logger, "media"),
	}
}

// Sync attaches the source snap calls for. It reports whether the player's
// source changed.
func (r *Resolver) Sync(snap snapshot.Snapshot) bool {
	primary, fallback := Paths(snap)
	if primary != r.primary {
		r.failedPrimary = ""
	}
	r.primary, r.fallback = primary, fallback
	r.rawKey = snap.RawVideoKey()

	next, key := primary, snap.MediaKey()
	if primary != "" && primary == r.failedPrimary && fallback != "" {
		next, key = fallback, r.rawKey
	}
	if next == "" {
		next, key = fallback, r.rawKey
	}

	if next == "" {
		if r.player.Source() != "" {
			r.player.Detach()
		}
		r.mediaKey = ""
		r.hasPending = false
		return false
	}

	if strings.HasSuffix(r.player.Source(), next) {
		return false
	}

	r.attach(next, key)
	if pos, ok := snap.StoredPlayback(key); ok {
		r.pendingSeek, r.hasPending = pos, true
	} else {
		r.hasPending = false
	}
	r.logger.Debug("media source attached",
		logging.String(logging.FieldMediaKey, key),
		logging.Bool("pending_seek", r.hasPending))
	return true
}

func (r *Resolver) attach(path, key string) {
	r.loadError = false
	r.player.Detach()
	r.player.Attach(r.urlFor(path))
	if !r.userUnmuted {
		r.player.SetMuted(true)
	}
	r.mediaKey = key
}

// HandleEvent applies player notifications that affect source state.
func (r *Resolver) HandleEvent(evt Event) {
	switch evt.Kind {
	case EventError:
		r.handleLoadError(evt.Err)
	case EventLoadedData:
		r.loadError = false
		if !r.userUnmuted {
			r.player.SetMuted(true)
		}
	case EventLoadedMetadata:
		r.applyPendingSeek()
	case EventVolumeChange:
		if !r.player.Muted() {
			r.userUnmuted = true
		}
	}
}

func (r *Resolver) handleLoadError(err error) {
	r.loadError = true
	current := r.player.Source()
	if r.primary != "" && r.fallback != "" &&
		strings.HasSuffix(current, r.primary) && !strings.HasSuffix(current, r.fallback) {
		logging.WarnWithContext(r.logger, "converted media failed; falling back to raw upload", "media_failover",
			logging.Error(err),
			logging.String(logging.FieldMediaKey, r.mediaKey),
			logging.String(logging.FieldErrorHint, "check the conversion step in the event log"),
			logging.String(logging.FieldImpact, "playing the unconverted upload"))
		r.failedPrimary = r.primary
		r.attach(r.fallback, r.rawKey)
		// Positions are stored per key; the converted one never applies here.
		r.hasPending = false
		return
	}
	logging.WarnWithContext(r.logger, "media failed to load", "media_load_failed",
		logging.Error(err),
		logging.String(logging.FieldMediaKey, r.mediaKey),
		logging.String(logging.FieldErrorHint, "check the URL or format in the event log"),
		logging.String(logging.FieldImpact, "video unavailable"))
}

func (r *Resolver) applyPendingSeek() {
	if !r.hasPending {
		return
	}
	target := r.pendingSeek
	if duration := r.player.Duration(); !math.IsNaN(duration) && !math.IsInf(duration, 0) {
		target = math.Min(target, math.Max(0, duration-seekEndMargin))
	}
	r.hasPending = false
	r.player.Seek(target)
}

// MediaKey identifies the attached asset; empty without media.
func (r *Resolver) MediaKey() string {
	return r.mediaKey
}

// LoadError reports whether the attached source failed to load.
func (r *Resolver) LoadError() bool {
	return r.loadError
}

// ErrorText is the indicator text, empty when there is no error.
func (r *Resolver) ErrorText() string {
	if r.loadError {
		return LoadErrorText
	}
	return ""
}

// PendingSeek returns the position waiting for metadata.
func (r *Resolver) PendingSeek() (float64, bool) {
	return r.pendingSeek, r.hasPending
}

// UserUnmuted reports whether the user unmuted during this session.
func (r *Resolver) UserUnmuted() bool {
	return r.userUnmuted
}

// ClearError hides the indicator, as after a state reset.
func (r *Resolver) ClearError() {
	r.loadError = false
}
