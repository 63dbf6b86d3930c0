package manager

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger. Rejections log at warn,
// failed generations at error, everything else at debug.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{log: l} }

func (p *LogPublisher) Publish(e Event) {
	var ev *zerolog.Event
	switch {
	case e.Name == "rejected":
		ev = p.log.Warn()
	case e.Name == "finished" && e.Fields["error"] != nil:
		ev = p.log.Error()
	case e.Name == "draining", e.Name == "closed":
		ev = p.log.Info()
	default:
		ev = p.log.Debug()
	}
	ev.Str("event", e.Name).Str("model", e.ModelID).Fields(e.Fields).Msg("manager event")
}
