package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaProducer publishes outbox payloads with franz-go.
type KafkaProducer struct {
	client *kgo.Client
}

// NewKafkaProducer connects to the seed brokers. Produces wait for all
// in-sync replicas so a published entry is never lost once marked.
func NewKafkaProducer(brokers []string, opts ...kgo.Opt) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaProducer{client: client}, nil
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *KafkaProducer) EnsureTopic(ctx context.Context, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Health pings the cluster.
func (p *KafkaProducer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
