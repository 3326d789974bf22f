package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/streamforge/comment-service/internal/config"
	"github.com/streamforge/comment-service/internal/models"
)

// videoCreatedIndex is the GSI used for recent-history reads, keyed by
// video_id with created_at as the range key.
const videoCreatedIndex = "video-created-index"

// CommentStore is the primary, append-mostly store for durably persisted
// comments.
type CommentStore interface {
	// SaveBatch writes every comment in the batch. A comment whose id
	// already exists is a no-op, so redelivered queue entries are safe.
	SaveBatch(ctx context.Context, comments []*models.Comment) error
	// ListRecent returns up to limit most-recent comments for a room in
	// chronological order.
	ListRecent(ctx context.Context, videoID string, limit int) ([]*models.Comment, error)
}

type dynamoDBStore struct {
	db    *dynamodb.DynamoDB
	table string
}

// NewDynamoDBClient builds a DynamoDB client from config. An explicit
// endpoint supports DynamoDB Local in development.
func NewDynamoDBClient(cfg config.DynamoDBConfig) (*dynamodb.DynamoDB, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return dynamodb.New(sess), nil
}

// NewDynamoDBStore wraps a DynamoDB client as a CommentStore.
func NewDynamoDBStore(db *dynamodb.DynamoDB, cfg config.DynamoDBConfig) CommentStore {
	return &dynamoDBStore{db: db, table: cfg.CommentTable}
}

func (r *dynamoDBStore) SaveBatch(ctx context.Context, comments []*models.Comment) error {
	for _, c := range comments {
		item, err := dynamodbattribute.MarshalMap(c)
		if err != nil {
			return fmt.Errorf("failed to marshal comment %s: %w", c.ID, err)
		}

		_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			// A duplicate id means this entry was already persisted by an
			// earlier delivery; replay must treat it as a no-op.
			if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
				continue
			}
			return fmt.Errorf("failed to put comment %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *dynamoDBStore) ListRecent(ctx context.Context, videoID string, limit int) ([]*models.Comment, error) {
	keyCond := expression.Key("video_id").Equal(expression.Value(videoID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	result, err := r.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(videoCreatedIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false), // newest first
		Limit:                     aws.Int64(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	// Reverse back to chronological order for the caller.
	comments := make([]*models.Comment, 0, len(result.Items))
	for i := len(result.Items) - 1; i >= 0; i-- {
		var c models.Comment
		if err := dynamodbattribute.UnmarshalMap(result.Items[i], &c); err != nil {
			continue // Skip invalid items
		}
		comments = append(comments, &c)
	}
	return comments, nil
}
