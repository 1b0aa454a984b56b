package integration

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter creates a writer for the receipt events topic. brokers is a
// comma separated list of host:port; nil is returned when it is empty.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 || topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
