package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestReaderConfig_Defaults(t *testing.T) {
	rc := Config{Brokers: []string{"b:9092"}, Topic: "stripe.events", GroupID: "g"}.readerConfig()

	assert.Equal(t, 1<<10, rc.MinBytes)
	assert.Equal(t, 10<<20, rc.MaxBytes)
	assert.Equal(t, 50*time.Millisecond, rc.MaxWait)
	assert.Equal(t, kafka.FirstOffset, rc.StartOffset)
	assert.Zero(t, rc.CommitInterval)
}

func TestReaderConfig_KeepsExplicitValues(t *testing.T) {
	rc := Config{MinBytes: 10, MaxBytes: 20, MaxWait: time.Second, CommitInterval: time.Second}.readerConfig()

	assert.Equal(t, 10, rc.MinBytes)
	assert.Equal(t, 20, rc.MaxBytes)
	assert.Equal(t, time.Second, rc.MaxWait)
	assert.Equal(t, time.Second, rc.CommitInterval)
}
