package migration

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/config"
)

// DynamoDBMigrator creates the comments table on startup when it does not
// exist yet.
type DynamoDBMigrator struct {
	db     *dynamodb.DynamoDB
	config *config.DynamoDBConfig
	log    *logrus.Logger
}

func NewDynamoDBMigrator(db *dynamodb.DynamoDB, cfg *config.DynamoDBConfig, log *logrus.Logger) *DynamoDBMigrator {
	return &DynamoDBMigrator{db: db, config: cfg, log: log}
}

func (m *DynamoDBMigrator) CreateTables() error {
	if err := m.createCommentsTable(); err != nil {
		return fmt.Errorf("failed to create comments table: %w", err)
	}
	return nil
}

func (m *DynamoDBMigrator) createCommentsTable() error {
	tableName := m.config.CommentTable

	_, err := m.db.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		m.log.WithField("table", tableName).Debug("table already exists, skipping creation")
		return nil
	}

	m.log.WithField("table", tableName).Info("creating table")

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("video_id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("created_at"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String("video-created-index"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("video_id"),
						KeyType:       aws.String("HASH"),
					},
					{
						AttributeName: aws.String("created_at"),
						KeyType:       aws.String("RANGE"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String("ALL"),
				},
			},
		},
	}

	if _, err := m.db.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	return m.waitForTableActive(tableName)
}

func (m *DynamoDBMigrator) waitForTableActive(tableName string) error {
	maxRetries := 30
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		resp, err := m.db.DescribeTable(&dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}
		if *resp.Table.TableStatus == "ACTIVE" {
			return nil
		}
		m.log.WithFields(logrus.Fields{
			"table":  tableName,
			"status": *resp.Table.TableStatus,
		}).Debug("waiting for table to become active")
		time.Sleep(retryInterval)
	}

	return fmt.Errorf("table %s did not become active within timeout", tableName)
}
