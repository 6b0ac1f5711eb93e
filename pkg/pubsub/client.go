package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

// Requirement names a Pub/Sub resource a binary cannot run without. The
// outbox relay needs the records topic; the dispatcher needs the records
// subscription.
type Requirement int

const (
	NeedsRecordsTopic Requirement = iota + 1
	NeedsRecordsSubscription
)

func (r Requirement) String() string {
	switch r {
	case NeedsRecordsTopic:
		return "records topic"
	case NeedsRecordsSubscription:
		return "records subscription"
	default:
		return "unknown requirement"
	}
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	needs     []Requirement
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient connects to Pub/Sub and verifies every requirement up front so a
// misconfigured binary fails at boot rather than on first message.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, needs ...Requirement) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg, needs: needs}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":   projectID,
			"topic":        cfg.RecordsTopic,
			"subscription": cfg.RecordsSubscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

// Ping confirms each required resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	for _, need := range c.needs {
		var err error
		switch need {
		case NeedsRecordsTopic:
			err = c.checkTopic(ctx, c.cfg.RecordsTopic)
		case NeedsRecordsSubscription:
			err = c.checkSubscription(ctx, c.cfg.RecordsSubscription)
		default:
			err = fmt.Errorf("unsupported requirement %d", need)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", need, err)
		}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	full := resourceName(c.projectID, "topics", name)
	if full == "" {
		return errors.New("topic name is required")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	return describeLookup(full, err)
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	full := resourceName(c.projectID, "subscriptions", name)
	if full == "" {
		return errors.New("subscription name is required")
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	return describeLookup(full, err)
}

func describeLookup(full string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", full)
	default:
		return fmt.Errorf("looking up %s: %w", full, err)
	}
}

// RecordsSubscription returns the subscriber the dispatcher consumes from.
func (c *Client) RecordsSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, "subscriptions", c.cfg.RecordsSubscription)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, "topics", topic)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id into projects/<p>/<collection>/<id>. Full
// resource names of the same collection pass through unchanged.
func resourceName(projectID, collection, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+collection+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + collection + "/" + n
}
