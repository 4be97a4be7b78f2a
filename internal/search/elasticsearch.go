package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"example.com/backstage/services/gamebot/config"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned by queries when no index is configured
var ErrDisabled = errors.New("lifecycle index is disabled")

// LifecycleIndex stores lifecycle records in Elasticsearch so past events can be looked up
type LifecycleIndex struct {
	client  *elasticsearch.Client
	index   string
	enabled bool
}

// NewLifecycleIndex creates the index client; a disabled config yields a no-op index
func NewLifecycleIndex(cfg config.ElasticConfig) (*LifecycleIndex, error) {
	if !cfg.Enabled {
		return &LifecycleIndex{enabled: false}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &LifecycleIndex{
		client:  client,
		index:   cfg.Index,
		enabled: true,
	}, nil
}

// Enabled reports whether records are indexed
func (i *LifecycleIndex) Enabled() bool {
	return i.enabled
}

// Publish indexes a lifecycle record under its id
func (i *LifecycleIndex) Publish(ctx context.Context, record models.Lifecycle) error {
	if !i.enabled {
		return nil
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal lifecycle document")
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: record.ID.String(),
		Body:       bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "index")
	}

	log.Debug().Str("event_id", record.EventID).Str("type", string(record.Type)).Msg("Lifecycle record indexed")
	return nil
}

// ByEvent returns every lifecycle record of an event, oldest first
func (i *LifecycleIndex) ByEvent(ctx context.Context, eventID string) ([]models.Lifecycle, error) {
	if !i.enabled {
		return nil, ErrDisabled
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"event_id.keyword": eventID,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]string{"order": "asc"}},
		},
		"size": 100,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "search")
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source models.Lifecycle `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	records := make([]models.Lifecycle, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}

func responseError(res *esapi.Response, op string) error {
	var e map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Errorf("Elasticsearch %s error: %s", op, strings.TrimSpace(res.Status()))
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
