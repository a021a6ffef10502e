// Package dynamo stores readings in a DynamoDB table keyed by station_id and
// timestamp, the layout used by the deployed uploader.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// sinceLayout drops the zone so the filter compares correctly against both
// zoned and naive stored timestamps.
const sinceLayout = "2006-01-02T15:04:05"

// API is the part of the DynamoDB client the store uses.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Store struct {
	client API
	table  string
}

type item struct {
	StationID   string `dynamodbav:"station_id"`
	Timestamp   string `dynamodbav:"timestamp"`
	EthylenePpm string `dynamodbav:"ethylene_ppm"`
	Sequence    uint64 `dynamodbav:"sequence,omitempty"`
}

func New(client API, table string) (*Store, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is not initialized")
	}
	if table == "" {
		return nil, errors.New("dynamodb table name is empty")
	}
	return &Store{client: client, table: table}, nil
}

// NewFromConfig loads the default AWS configuration for cfg.Region and builds a
// Store. A non-empty cfg.Endpoint points the client at a local DynamoDB.
func NewFromConfig(ctx context.Context, cfg config.DynamoDB) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Table)
}

// Append writes one reading. The concentration is stored as a string with two
// decimals.
func (s *Store) Append(ctx context.Context, r types.Reading) error {
	av, err := attributevalue.MarshalMap(item{
		StationID:   r.StationID,
		Timestamp:   store.FormatTime(r.Timestamp),
		EthylenePpm: strconv.FormatFloat(r.EthylenePpm, 'f', 2, 64),
		Sequence:    r.Sequence,
	})
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return store.Unavailable("put item", err)
	}
	return nil
}

// ListRecent scans the table. Items with missing or mistyped attributes are
// returned with empty fields so that the aggregator can count and drop them.
func (s *Store) ListRecent(ctx context.Context, since time.Time) ([]types.Record, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if !since.IsZero() {
		in.FilterExpression = aws.String("#ts >= :since")
		in.ExpressionAttributeNames = map[string]string{"#ts": "timestamp"}
		in.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":since": &ddbtypes.AttributeValueMemberS{Value: since.UTC().Format(sinceLayout)},
		}
	}

	var out []types.Record
	p := dynamodb.NewScanPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, store.Unavailable("scan", err)
		}
		for _, it := range page.Items {
			out = append(out, decode(it))
		}
	}
	return out, nil
}

func decode(it map[string]ddbtypes.AttributeValue) types.Record {
	rec := types.Record{
		StationID:   text(it["station_id"]),
		Timestamp:   text(it["timestamp"]),
		EthylenePpm: text(it["ethylene_ppm"]),
	}
	if seq, err := strconv.ParseUint(text(it["sequence"]), 10, 64); err == nil {
		rec.Sequence = seq
	}
	return rec
}

// text returns the value of a string or number attribute, or "" for anything else.
func text(av ddbtypes.AttributeValue) string {
	switch v := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return v.Value
	case *ddbtypes.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}
