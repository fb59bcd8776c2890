package event

// Kind identifies an event variant. The set is closed: every valid kind is
// declared below and listed by Kinds.
type Kind string

// Protocol kinds cross the transport between client and host.
const (
	ConnectionInit Kind = "connection_init"
	SceneLoad      Kind = "scene_load"
	TileChange     Kind = "tile_change"
	DiscoverTile   Kind = "discover_tile"
	ActorLoad      Kind = "actor_load"
	ActorMove      Kind = "actor_move"
	SelectOverlay  Kind = "select_overlay"
	UnloadActor    Kind = "unload_actor"
)

// Input-routing kinds stay inside one process.
const (
	KeyInput       Kind = "key_input"
	OverlayRequest Kind = "overlay_request"
	OverlayOpened  Kind = "overlay_opened"
)

var protocolKinds = []Kind{
	ConnectionInit,
	SceneLoad,
	TileChange,
	DiscoverTile,
	ActorLoad,
	ActorMove,
	SelectOverlay,
	UnloadActor,
}

var localKinds = []Kind{
	KeyInput,
	OverlayRequest,
	OverlayOpened,
}

// Kinds returns every protocol kind in catalog order.
func Kinds() []Kind {
	return append([]Kind(nil), protocolKinds...)
}

// Valid reports whether k belongs to the catalog.
func (k Kind) Valid() bool {
	return k.Protocol() || k.local()
}

// Protocol reports whether k may be transmitted between sessions.
func (k Kind) Protocol() bool {
	for _, candidate := range protocolKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func (k Kind) local() bool {
	for _, candidate := range localKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Motion reports whether Dt carries elapsed time for k.
func (k Kind) Motion() bool {
	return k == ActorMove
}

// Family selects which handler role an event is offered to.
type Family uint8

const (
	// FamilyTry validates or predicts a requested change.
	FamilyTry Family = iota + 1
	// FamilyDo applies an already decided change.
	FamilyDo
	// FamilyInput carries raw UI input through the window stack.
	FamilyInput
	// FamilyNotify carries local notifications such as overlay_opened.
	FamilyNotify
)

func (f Family) String() string {
	switch f {
	case FamilyTry:
		return "try"
	case FamilyDo:
		return "do"
	case FamilyInput:
		return "input"
	case FamilyNotify:
		return "on"
	default:
		return "unknown"
	}
}

// HandlerName renders the derived handler name for k in family f, for
// example "try_actor_move" or "do_tile_change".
func (f Family) HandlerName(k Kind) string {
	return f.String() + "_" + string(k)
}
