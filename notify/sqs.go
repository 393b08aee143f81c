// Package notify announces exported collections to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/baldanca/mongo-ddb-export/exporter"
)

type SQSConfig struct {
	// SendTimeout bounds one SendMessage call. Zero means no extra bound.
	SendTimeout time.Duration
	// MessageGroupID is required for FIFO queues and ignored otherwise.
	// Empty uses the database name.
	MessageGroupID string
}

var DefaultSQSConfig = SQSConfig{
	SendTimeout: 10 * time.Second,
}

func (c SQSConfig) validate() {
	if c.SendTimeout < 0 {
		panic("send timeout must be non-negative")
	}
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS sends one JSON message per exported collection.
type SQS struct {
	cfg      SQSConfig
	client   sqsAPI
	queueURL string
	fifo     bool
}

func NewSQS(client sqsAPI, queueURL string, cfg SQSConfig) *SQS {
	if client == nil {
		panic("sqs client is required")
	}
	if queueURL == "" {
		panic("queue url is required")
	}
	cfg.validate()

	return &SQS{
		cfg:      cfg,
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

var _ exporter.Notifier = (*SQS)(nil)

func (s *SQS) Notify(ctx context.Context, ev exporter.CollectionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s.%s: %w", ev.Database, ev.Collection, err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"run_id":     stringAttr(ev.RunID),
			"database":   stringAttr(ev.Database),
			"collection": stringAttr(ev.Collection),
			"documents": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(ev.Documents, 10)),
			},
		},
	}
	if s.fifo {
		group := s.cfg.MessageGroupID
		if group == "" {
			group = ev.Database
		}
		in.MessageGroupId = aws.String(group)
		// Stable per run and collection so a resent notification is dropped.
		in.MessageDeduplicationId = aws.String(dedupID(ev))
	}

	if s.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
	}

	if _, err := s.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send %s.%s: %w", ev.Database, ev.Collection, err)
	}
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	if v == "" {
		v = "-"
	}
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func dedupID(ev exporter.CollectionEvent) string {
	name := ev.RunID + "/" + ev.Database + "/" + ev.Collection
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
