package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported sink types.
const (
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeHTTP      = "http"
	TypeGCPPubSub = "gcp_pubsub"
)

// PublisherConfig is one sink entry of the publishers file. Exactly the
// section matching Type is read.
type PublisherConfig struct {
	ID        string                    `json:"id" yaml:"id"`
	Type      string                    `json:"type" yaml:"type"`
	Enabled   *bool                     `json:"enabled" yaml:"enabled"`
	SQS       *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS       *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	HTTP      *HTTPPublisherConfig      `json:"http" yaml:"http"`
	GCPPubSub *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// SQSPublisherConfig sends relay events to a queue.
type SQSPublisherConfig struct {
	AWSAccess `yaml:",inline"`

	QueueURL string `json:"uri" yaml:"uri"`
}

// SNSPublisherConfig sends relay events to a topic.
type SNSPublisherConfig struct {
	AWSAccess `yaml:",inline"`

	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
}

// GCPPubSubPublisherConfig sends relay events to a Pub/Sub topic.
type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig posts relay events to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoadConfigs reads the publishers file at path and returns its enabled
// entries, normalized and checked. ".json" files are decoded as JSON and
// everything else as YAML.
func LoadConfigs(path string) ([]PublisherConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var file struct {
		Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &file)
	} else {
		err = yaml.Unmarshal(raw, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", path, err)
	}
	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	seen := make(map[string]bool, len(file.Publishers))
	var enabled []PublisherConfig
	for i, cfg := range file.Publishers {
		cfg.normalize()
		if err := cfg.check(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = true
		if cfg.Enabled == nil || *cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

func (c *PublisherConfig) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.SQS != nil {
		c.SQS.QueueURL = strings.TrimSpace(c.SQS.QueueURL)
		c.SQS.AWSAccess.trim()
	}
	if c.SNS != nil {
		c.SNS.TopicARN = strings.TrimSpace(c.SNS.TopicARN)
		c.SNS.AWSAccess.trim()
	}
	if c.GCPPubSub != nil {
		c.GCPPubSub.ProjectID = strings.TrimSpace(c.GCPPubSub.ProjectID)
		c.GCPPubSub.Topic = strings.TrimSpace(c.GCPPubSub.Topic)
		c.GCPPubSub.CredentialsFile = strings.TrimSpace(c.GCPPubSub.CredentialsFile)
	}
	if h := c.HTTP; h != nil {
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = "POST"
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = 5
		}
		headers := make(map[string]string, len(h.Headers))
		for k, v := range h.Headers {
			if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
				headers[k] = v
			}
		}
		h.Headers = headers
	}
}

func (c PublisherConfig) check() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	var missing string
	switch c.Type {
	case TypeSQS:
		switch {
		case c.SQS == nil:
			missing = "sqs"
		case c.SQS.QueueURL == "":
			missing = "sqs.uri"
		case c.SQS.Region == "":
			missing = "sqs.region"
		}
	case TypeSNS:
		switch {
		case c.SNS == nil:
			missing = "sns"
		case c.SNS.TopicARN == "":
			missing = "sns.topic_arn"
		case c.SNS.Region == "":
			missing = "sns.region"
		}
	case TypeHTTP:
		if c.HTTP == nil || c.HTTP.URL == "" {
			missing = "http.url"
		}
	case TypeGCPPubSub:
		switch {
		case c.GCPPubSub == nil:
			missing = "gcp_pubsub"
		case c.GCPPubSub.ProjectID == "":
			missing = "gcp_pubsub.project_id"
		case c.GCPPubSub.Topic == "":
			missing = "gcp_pubsub.topic"
		}
	case "":
		missing = "type"
	default:
		return fmt.Errorf("unsupported type %q for publisher %q", c.Type, c.ID)
	}
	if missing != "" {
		return fmt.Errorf("%s is required for publisher %q", missing, c.ID)
	}
	return nil
}
