package web

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/atlassian/gossipmember/pkg/cluster/nodes"
)

type memberJSON struct {
	ID            int32 `json:"id"`
	Port          int16 `json:"port"`
	Heartbeat     int64 `json:"heartbeat"`
	LastRefreshed int64 `json:"last_refreshed"`
}

type membershipJSON struct {
	Self      string       `json:"self"`
	State     string       `json:"state"`
	Heartbeat int64        `json:"heartbeat"`
	Members   []memberJSON `json:"members"`
}

type ownerJSON struct {
	Key  string `json:"key"`
	Node string `json:"node"`
	Self bool   `json:"self"`
}

type membershipHandler struct {
	member Member
	picker nodes.NodePicker
}

func writeJSON(resp http.ResponseWriter, status int, v interface{}) {
	resp.Header().Set("content-type", "application/json")
	resp.WriteHeader(status)
	_ = jsoniter.NewEncoder(resp).Encode(v)
}

// membership renders the membership table of the node.
func (mh *membershipHandler) membership(resp http.ResponseWriter, req *http.Request) {
	entries := mh.member.Members()
	body := membershipJSON{
		Self:      mh.member.Self().String(),
		State:     mh.member.State().String(),
		Heartbeat: mh.member.Heartbeat(),
		Members:   make([]memberJSON, 0, len(entries)), // Force it to render as an array, not null
	}
	for _, e := range entries {
		body.Members = append(body.Members, memberJSON{
			ID:            e.Address.ID,
			Port:          e.Address.Port,
			Heartbeat:     e.Heartbeat,
			LastRefreshed: int64(e.LastRefreshed),
		})
	}
	writeJSON(resp, http.StatusOK, body)
}

// owner reports which live node owns a key.
func (mh *membershipHandler) owner(resp http.ResponseWriter, req *http.Request) {
	key := mux.Vars(req)["key"]
	node, self, err := mh.picker.Select(key)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, nodes.ErrNoNodes) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(resp, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(resp, http.StatusOK, ownerJSON{Key: key, Node: node, Self: self})
}
