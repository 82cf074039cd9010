package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gossipmember/pkg/engine"
)

type healthChecker struct {
	logger logrus.FieldLogger
	member Member
}

// healthCheck reports if the node is an active member of the group.
func (hc *healthChecker) healthCheck(resp http.ResponseWriter, req *http.Request) {
	state := hc.member.State()
	resp.Header().Set("content-type", "application/json")
	if state == engine.Active {
		resp.WriteHeader(http.StatusOK)
	} else {
		hc.logger.WithField("state", state.String()).Debug("Unhealthy")
		resp.WriteHeader(http.StatusServiceUnavailable)
	}

	enc := jsoniter.NewEncoder(resp)
	_ = enc.Encode(map[string]string{
		"state": state.String(),
	})
}
