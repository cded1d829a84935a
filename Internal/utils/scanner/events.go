package scanner

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fazecat/hpsscanner/Internal/handlers/monitoring"
	"github.com/fazecat/hpsscanner/Internal/metrics"
	"github.com/fazecat/hpsscanner/Internal/types"
)

// Event bus topics.
const (
	TopicSignalFired    = "signal:fired"
	TopicSignalExited   = "signal:exited"
	TopicGoldenCaptured = "golden:captured"
)

// Event is the payload published for every tracker transition.
type Event struct {
	Topic      string                `json:"topic"`
	Ticker     string                `json:"ticker"`
	Transition monitoring.Transition `json:"-"`
	Kind       string                `json:"transition"`
	Score      int                   `json:"score"`
	Price      float64               `json:"price"`
	At         time.Time             `json:"at"`
}

func topicFor(t monitoring.Transition) string {
	switch t {
	case monitoring.TransitionSignaled:
		return TopicSignalFired
	case monitoring.TransitionExited:
		return TopicSignalExited
	case monitoring.TransitionCaptured, monitoring.TransitionRecovered:
		return TopicGoldenCaptured
	default:
		return ""
	}
}

func (s *Scanner) publish(t monitoring.Transition, ticker string, res types.ScoreResult, now time.Time) {
	topic := topicFor(t)
	if topic == "" {
		return
	}
	metrics.Transitions.WithLabelValues(t.String()).Inc()

	log.WithFields(log.Fields{
		"ticker": ticker,
		"score":  res.Score,
		"price":  res.Price,
	}).Infof("%s", t)

	s.bus.Publish(topic, Event{
		Topic:      topic,
		Ticker:     ticker,
		Transition: t,
		Kind:       t.String(),
		Score:      res.Score,
		Price:      res.Price,
		At:         now,
	})
}
