package events

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	okPrefix   = color.New(color.FgGreen, color.Bold).Sprint("+")
	tryPrefix  = color.New(color.FgCyan).Sprint("-")
	warnPrefix = color.New(color.FgYellow, color.Bold).Sprint("!")
)

// AttachLogger subscribes a colored console logger to every lifecycle event
// on e, giving the operator-feedback lines spec.md §7 calls for
// (+Injected, !Couldn't bake, !Head changed, ...). It is
// for operator feedback only, never for control flow.
func AttachLogger(e *Emitter) {
	for _, typ := range []EventType{
		EventBaked, EventEndorsed, EventInjected, EventRevealed,
		EventAbandoned, EventHeadChanged, EventBakeFailed, EventLevelRace,
	} {
		e.Subscribe(typ, logEvent)
	}
}

func logEvent(ev Event) {
	switch ev.Type {
	case EventBaked:
		fmt.Printf("%s Baked level %d (%s)\n", okPrefix, ev.Level, shortHash(ev.BlockHash))
	case EventEndorsed:
		fmt.Printf("%s Endorsed level %d\n", okPrefix, ev.Level)
	case EventInjected:
		fmt.Printf("%s Injected at level %d (%s)\n", okPrefix, ev.Level, shortHash(ev.BlockHash))
	case EventRevealed:
		fmt.Printf("%s Revealed nonce for level %d\n", okPrefix, ev.Level)
	case EventAbandoned:
		fmt.Printf("%s Abandoned nonce for level %d, reveal window closed\n", warnPrefix, ev.Level)
	case EventHeadChanged:
		fmt.Printf("%s Head changed, now at level %d\n", warnPrefix, ev.Level)
	case EventBakeFailed:
		fmt.Printf("%s Couldn't bake level %d: %v\n", warnPrefix, ev.Level, ev.Err)
	case EventLevelRace:
		fmt.Printf("%s Level race at %d, action aborted\n", warnPrefix, ev.Level)
	default:
		fmt.Printf("%s %s at level %d\n", tryPrefix, ev.Type, ev.Level)
	}
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12] + "…"
}
