package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlassian/gossipmember"
)

// MockNodePicker implements a mock nodes.NodePicker from github.com/atlassian/gossipmember/pkg/cluster/nodes
type MockNodePicker struct {
	TB testing.TB

	FnAdd    func(node string)
	FnList   func() []string
	FnRemove func(node string)
	FnSelect func(key string) (string, bool, error)
}

func (m *MockNodePicker) Add(node string) {
	if m.FnAdd != nil {
		m.FnAdd(node)
	} else {
		assert.Fail(m.TB, "NodePicker.Add must not be called")
	}
}

func (m *MockNodePicker) List() (p0 []string) {
	if m.FnList != nil {
		return m.FnList()
	}
	assert.Fail(m.TB, "NodePicker.List must not be called")
	return
}

func (m *MockNodePicker) Remove(node string) {
	if m.FnRemove != nil {
		m.FnRemove(node)
	} else {
		assert.Fail(m.TB, "NodePicker.Remove must not be called")
	}
}

func (m *MockNodePicker) Select(key string) (p0 string, p1 bool, p2 error) {
	if m.FnSelect != nil {
		return m.FnSelect(key)
	}
	assert.Fail(m.TB, "NodePicker.Select must not be called")
	return
}

// MockTransport implements a mock gossipmember.Transport
type MockTransport struct {
	TB testing.TB

	FnSend    func(ctx context.Context, from, to gossipmember.Address, payload []byte) error
	FnInbound func(addr gossipmember.Address) <-chan []byte
}

func (m *MockTransport) Send(ctx context.Context, from, to gossipmember.Address, payload []byte) error {
	if m.FnSend != nil {
		return m.FnSend(ctx, from, to, payload)
	}
	assert.Fail(m.TB, "Transport.Send must not be called")
	return nil
}

func (m *MockTransport) Inbound(addr gossipmember.Address) <-chan []byte {
	if m.FnInbound != nil {
		return m.FnInbound(addr)
	}
	assert.Fail(m.TB, "Transport.Inbound must not be called")
	return nil
}
