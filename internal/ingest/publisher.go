package ingest

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/PaulChelaru/petfinder-matching-service/internal/config"
	eventschema "github.com/PaulChelaru/petfinder-matching-service/schema"
)

// EventPublisher writes announcement-created events onto the partition that
// owns the announcement id.
type EventPublisher struct {
	publisher message.Publisher
	topics    []string
}

func NewEventPublisher(publisher message.Publisher, topic string, partitions int) (*EventPublisher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return &EventPublisher{
		publisher: publisher,
		topics:    config.PartitionTopics(topic, partitions),
	}, nil
}

// Publish sends ev and returns the topic it went to. Every event for one
// announcement lands on the same partition.
func (p *EventPublisher) Publish(ev eventschema.AnnouncementEvent) (string, error) {
	id := strings.TrimSpace(ev.AnnouncementID)
	if id == "" {
		return "", fmt.Errorf("announcement id is required")
	}
	ev.AnnouncementID = id

	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	if _, err := eventschema.ValidateAnnouncementEvent(payload); err != nil {
		return "", err
	}

	topic := p.topics[Partition(id, len(p.topics))]
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("announcement_id", id)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return topic, nil
}

// Partition maps id onto [0, partitions) with FNV-1a.
func Partition(id string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(partitions))
}
