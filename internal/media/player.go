package media

// EventKind names a player notification.
type EventKind string

const (
	EventLoadedMetadata EventKind = "loadedmetadata"
	EventLoadedData     EventKind = "loadeddata"
	EventError          EventKind = "error"
	EventTimeUpdate     EventKind = "timeupdate"
	EventPlay           EventKind = "play"
	EventPause          EventKind = "pause"
	EventVolumeChange   EventKind = "volumechange"
	EventResize         EventKind = "resize"
)

// Event is delivered to the player's handler on the event loop.
type Event struct {
	Kind EventKind
	Err  error
}

// Bounds is the player's on-screen box in surface units.
type Bounds struct {
	Width  int
	Height int
}

// Player is the media element the resolver drives. Implementations deliver
// events asynchronously through the handler set with SetEventHandler.
type Player interface {
	SetEventHandler(fn func(Event))
	Attach(url string)
	Detach()
	Source() string
	Muted() bool
	SetMuted(muted bool)
	Play()
	Pause()
	Paused() bool
	Seek(seconds float64)
	CurrentTime() float64
	// Duration is NaN while unknown.
	Duration() float64
	Bounds() Bounds
}
