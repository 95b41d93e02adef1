package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// batchGetLimit is DynamoDB's cap on keys per BatchGetItem call
const batchGetLimit = 100

// dynamoItem is the table layout: one item per key
type dynamoItem struct {
	Key     string `dynamodbav:"pk"`
	Value   []byte `dynamodbav:"value"`
	Version int64  `dynamodbav:"version"`
}

// DynamoStore keeps entries in a single DynamoDB table keyed by "pk"
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoClient builds a DynamoDB client. Static credentials and a custom
// endpoint are optional and mainly used against DynamoDB Local.
func NewDynamoClient(ctx context.Context, region, accessKey, secretKey, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewDynamoStore creates a store on an existing table
func NewDynamoStore(client *dynamodb.Client, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// EnsureTable creates the table with on-demand billing if it does not exist
func (s *DynamoStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table '%s': %w", s.table, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table '%s': %w", s.table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("table '%s' did not become active: %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, key string) (*Entry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            pkKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from table '%s': %w", s.table, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalDynamoItem(out.Item)
}

func (s *DynamoStore) MGet(ctx context.Context, keys []string) ([]*Entry, error) {
	out := make([]*Entry, len(keys))
	found := make(map[string]*Entry, len(keys))

	unique := uniqueKeys(keys)
	for start := 0; start < len(unique); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(unique) {
			end = len(unique)
		}

		request := make([]map[string]types.AttributeValue, 0, end-start)
		for _, k := range unique[start:end] {
			request = append(request, pkKey(k))
		}

		pending := map[string]types.KeysAndAttributes{
			s.table: {Keys: request, ConsistentRead: aws.Bool(true)},
		}
		for len(pending) > 0 {
			resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get from table '%s': %w", s.table, err)
			}
			for _, item := range resp.Responses[s.table] {
				e, err := unmarshalDynamoItem(item)
				if err != nil {
					return nil, err
				}
				found[e.Key] = e
			}
			pending = resp.UnprocessedKeys
		}
	}

	for i, k := range keys {
		if e, ok := found[k]; ok {
			out[i] = &Entry{Key: e.Key, Value: cloneBytes(e.Value), Version: e.Version}
		}
	}
	return out, nil
}

func (s *DynamoStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              pkKey(key),
		UpdateExpression: aws.String("SET #value = :value ADD #version :one"),
		ExpressionAttributeNames: map[string]string{
			"#value":   "value",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberB{Value: value},
			":one":   &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	var err error
	if expected == 0 {
		item, merr := attributevalue.MarshalMap(dynamoItem{Key: key, Value: value, Version: 1})
		if merr != nil {
			return 0, fmt.Errorf("failed to marshal item: %w", merr)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		})
	} else {
		_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.table),
			Key:                 pkKey(key),
			UpdateExpression:    aws.String("SET #value = :value, #version = :next"),
			ConditionExpression: aws.String("#version = :expected"),
			ExpressionAttributeNames: map[string]string{
				"#value":   "value",
				"#version": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":value":    &types.AttributeValueMemberB{Value: value},
				":next":     &types.AttributeValueMemberN{Value: strconv.FormatInt(expected+1, 10)},
				":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
			},
		})
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write item in table '%s': %w", s.table, err)
	}
	return expected + 1, nil
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       pkKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", s.table, err)
	}
	return nil
}

// Scan walks the whole table with a begins_with filter. Fine for the small
// per-user prefixes this service scans; not meant for large tables.
func (s *DynamoStore) Scan(ctx context.Context, prefix string) ([]*Entry, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("begins_with(pk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ConsistentRead: aws.Bool(true),
	}

	var out []*Entry
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", s.table, err)
		}
		for _, item := range page.Items {
			e, err := unmarshalDynamoItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (s *DynamoStore) Close() error { return nil }

func pkKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key},
	}
}

func unmarshalDynamoItem(item map[string]types.AttributeValue) (*Entry, error) {
	var di dynamoItem
	if err := attributevalue.UnmarshalMap(item, &di); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &Entry{Key: di.Key, Value: di.Value, Version: di.Version}, nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
