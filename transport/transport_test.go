package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransport_Struct(t *testing.T) {
	transport := Transport{
		Publisher:  &mockPublisher{},
		Subscriber: &mockSubscriber{},
	}

	assert.NotNil(t, transport.Publisher)
	assert.NotNil(t, transport.Subscriber)
}

func TestConfig_Interface(t *testing.T) {
	var _ Config = (*mockConfig)(nil)

	cfg := &mockConfig{pubSubSystem: "test"}
	assert.Equal(t, "test", cfg.GetPubSubSystem())
}

type testProvider struct{}

func (testProvider) Capabilities() Capabilities {
	return Capabilities{Name: "test"}
}

func TestCapabilitiesProvider_Interface(t *testing.T) {
	var _ CapabilitiesProvider = testProvider{}

	provider := testProvider{}
	caps := provider.Capabilities()
	assert.Equal(t, "test", caps.Name)
}

type testIntrospector struct{}

func (testIntrospector) GetPendingCount(topic string) (int64, error) { return 7, nil }

func TestQueueIntrospector_Interface(t *testing.T) {
	var _ QueueIntrospector = testIntrospector{}

	count, err := testIntrospector{}.GetPendingCount("queue")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
