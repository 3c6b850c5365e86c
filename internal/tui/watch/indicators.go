package watch

import (
	"strings"
	"time"
)

// Activity lights five dots on every event and lets them fade over ten
// seconds of silence.
type Activity struct {
	dots      int
	lastEvent time.Time
}

func (a *Activity) OnEvent(at time.Time) {
	a.dots = 5
	a.lastEvent = at
}

func (a *Activity) Decay(now time.Time) {
	if a.dots == 0 {
		return
	}
	idle := now.Sub(a.lastEvent)
	a.dots = max(0, 5-int(idle/(2*time.Second)))
}

func (a Activity) Render(theme Theme) string {
	var b strings.Builder
	for i := range 5 {
		if i < a.dots {
			b.WriteString(theme.DotOn.Render("●"))
		} else {
			b.WriteString(theme.DotOff.Render("○"))
		}
	}
	return b.String()
}

func (a Activity) LastEvent() time.Time { return a.lastEvent }

// progressBar renders done/total as a fixed-width bar.
func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return strings.Repeat("░", max(width, 0))
	}
	filled := min(width, done*width/total)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
