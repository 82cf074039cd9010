package sinks

import (
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gossipmember"
)

// Logging is a Sink which logs every event at Info level.
type Logging struct {
	logger logrus.FieldLogger
}

// NewLogging creates a new Sink which sends events to the supplied logger.
func NewLogging(logger logrus.FieldLogger) *Logging {
	return &Logging{
		logger: logger,
	}
}

func (l *Logging) MemberAdded(observer, added gossipmember.Address) {
	l.logger.WithFields(logrus.Fields{
		"observer": observer.String(),
		"member":   added.String(),
	}).Info("Node added")
}

func (l *Logging) MemberRemoved(observer, removed gossipmember.Address) {
	l.logger.WithFields(logrus.Fields{
		"observer": observer.String(),
		"member":   removed.String(),
	}).Info("Node removed")
}
