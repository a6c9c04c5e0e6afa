package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// SalesIngestedMessage is published once an upload reached COMPLETED.
type SalesIngestedMessage struct {
	UploadId      string         `json:"upload_id"`
	CorrelationId string         `json:"correlation_id"`
	Sucursal      string         `json:"sucursal"`
	Anio          int            `json:"anio"`
	Mes           int            `json:"mes"`
	Semana        int            `json:"semana"`
	CreatedBy     string         `json:"created_by"`
	Counts        map[string]int `json:"counts"`
	IngestedAt    time.Time      `json:"ingested_at"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return pubsubClient, nil
}

func salesTopic() string {
	if v := os.Getenv("PUBSUB_SALES_TOPIC"); v != "" {
		return v
	}
	return "ventas.ingested"
}

// PublishSalesIngested publishes msg and returns the server-assigned message ID.
func PublishSalesIngested(ctx context.Context, msg SalesIngestedMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(salesTopic()).Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"sucursal":       msg.Sucursal,
			"correlation_id": msg.CorrelationId,
		},
	})
	return result.Get(ctx)
}
