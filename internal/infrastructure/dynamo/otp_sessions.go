package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/blog-otp-auth/internal/domain"
)

// OTPSessionRepo stores one OTP record per email.
// PK: email, TTL attribute: expires_at (epoch seconds).
//
// DynamoDB deletes expired items lazily, so readers still check Expired.
// ExpiresAt is rebuilt from the TTL attribute and loses sub-second precision.
type OTPSessionRepo struct {
	client    API
	tableName string
}

func NewOTPSessionRepo(client API, tableName string) *OTPSessionRepo {
	return &OTPSessionRepo{client: client, tableName: tableName}
}

func (r *OTPSessionRepo) Put(ctx context.Context, rec *domain.OTPRecord) (string, error) {
	rec.ExpiresAtUnix = rec.ExpiresAt.Unix()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return "", fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return "", upstream("PutItem", err)
	}
	return "", nil
}

func (r *OTPSessionRepo) Get(ctx context.Context, email, _ string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, upstream("GetItem", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	return decodeRecord(out.Item)
}

// RecordAttempt increments attempts atomically on the server.
func (r *OTPSessionRepo) RecordAttempt(ctx context.Context, email, _ string, maxAttempts int) (*domain.OTPRecord, string, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("email", email),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("attribute_exists(email)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, "", fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", upstream("UpdateItem", err)
	}
	rec, err := decodeRecord(out.Attributes)
	if err != nil {
		return nil, "", err
	}
	if rec.Exhausted(maxAttempts) {
		return rec, "", domain.ErrTooManyAttempts
	}
	return rec, "", nil
}

// Consume deletes the record. The condition makes a second delete fail, so
// only one concurrent caller succeeds.
func (r *OTPSessionRepo) Consume(ctx context.Context, email, _ string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("email", email),
		ConditionExpression: aws.String("attribute_exists(email)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp record for %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return upstream("DeleteItem", err)
	}
	return nil
}

func decodeRecord(item map[string]types.AttributeValue) (*domain.OTPRecord, error) {
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	rec.ExpiresAt = time.Unix(rec.ExpiresAtUnix, 0).UTC()
	return &rec, nil
}
