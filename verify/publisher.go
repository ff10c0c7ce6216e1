package verify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishPrefix is the topic root when neither config nor environment sets one.
const DefaultPublishPrefix = "pathverify"

// Publisher publishes verification results to MQTT. Every message is retained
// so late subscribers see the latest run.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	timeout       time.Duration
}

// TransformMessage is the payload of the transform topic.
type TransformMessage struct {
	Reference          string         `json:"reference"`
	Compare            string         `json:"compare"`
	CompareToReference RigidTransform `json:"compareToReference"`
	RotationDegrees    float64        `json:"rotationDegrees"`
	LandmarkRMS        float64        `json:"landmarkRms"`
	RMS                float64        `json:"rms"`
	Iterations         int            `json:"iterations"`
	Timestamp          int64          `json:"timestamp"`
}

// NewPublisher creates a result publisher. MQTT_PUBLISH_PREFIX overrides
// prefix; an empty prefix falls back to DefaultPublishPrefix.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		timeout:       2 * time.Second,
	}
}

// Prefix returns the topic root.
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// SummaryTopic is the topic of one summary row.
func (p *Publisher) SummaryTopic(label string, suffix int) string {
	return fmt.Sprintf("%s/%s/summary/%d", p.publishPrefix, label, suffix)
}

// TransformTopic is the topic of a compare collection's registration.
func (p *Publisher) TransformTopic(label string) string {
	return fmt.Sprintf("%s/%s/transform", p.publishPrefix, label)
}

// PublishSummary publishes every summary row to its own topic.
func (p *Publisher) PublishSummary(rows []SummaryRecord) error {
	for _, row := range rows {
		payload, err := json.Marshal(summaryPayload(row))
		if err != nil {
			return fmt.Errorf("marshaling summary %s/%d: %w", row.Label, row.Suffix, err)
		}
		if err := p.publish(p.SummaryTopic(row.Label, row.Suffix), payload); err != nil {
			return err
		}
	}
	log.Printf("[MQTT] Published %d summary rows", len(rows))
	return nil
}

// PublishTransform publishes the final transform of a refined registration.
func (p *Publisher) PublishTransform(r *Registration) error {
	if r == nil || r.Reference == nil || r.Compare == nil {
		return ErrNilCollection
	}
	msg := TransformMessage{
		Reference:          r.Reference.Name,
		Compare:            r.Compare.Name,
		CompareToReference: r.CompareToReference,
		RotationDegrees:    r.CompareToReference.RotationAngleDeg(),
		LandmarkRMS:        r.LandmarkRMS,
		RMS:                r.ICP.RMS,
		Iterations:         r.ICP.Iterations,
		Timestamp:          time.Now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling transform: %w", err)
	}
	return p.publish(p.TransformTopic(r.Compare.Name), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(p.timeout) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// summaryPayload flattens the percentiles into named keys for dashboards.
func summaryPayload(row SummaryRecord) map[string]interface{} {
	percentiles := make(map[string]*float64, len(PercentileLevels))
	for i, level := range PercentileLevels {
		percentiles[fmt.Sprintf("p%.0f", level)] = nullable(row.Percentiles[i])
	}
	return map[string]interface{}{
		"label":                  row.Label,
		"suffix":                 row.Suffix,
		"referenceSuffix":        row.ReferenceSuffix,
		"length":                 nullable(row.Length),
		"pointCount":             row.PointCount,
		"distanceCount":          row.DistanceCount,
		"mean":                   nullable(row.Mean),
		"stdev":                  nullable(row.Stdev),
		"percentiles":            percentiles,
		"angleDifferenceDegrees": nullable(row.AngleDifferenceDegrees),
	}
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
