package dynamo

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable is a single-table, hash-key-only stand-in for DynamoDB that
// understands the expressions the repositories send.
type fakeTable struct {
	mu      sync.Mutex
	keyAttr string
	items   map[string]map[string]types.AttributeValue
	err     error
}

func newFakeTable(keyAttr string) *fakeTable {
	return &fakeTable{keyAttr: keyAttr, items: make(map[string]map[string]types.AttributeValue)}
}

func strVal(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[strVal(in.Key[f.keyAttr])]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := strVal(in.Item[f.keyAttr])
	if in.ConditionExpression != nil {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := strVal(in.Key[f.keyAttr])
	item, ok := f.items[key]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	n := 0
	if cur, ok := item["attempts"].(*types.AttributeValueMemberN); ok {
		n, _ = strconv.Atoi(cur.Value)
	}
	inc, _ := strconv.Atoi(in.ExpressionAttributeValues[":one"].(*types.AttributeValueMemberN).Value)
	item["attempts"] = &types.AttributeValueMemberN{Value: strconv.Itoa(n + inc)}
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := strVal(in.Key[f.keyAttr])
	if _, ok := f.items[key]; !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query supports equality on the single attribute named by #a.
func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	attr := in.ExpressionAttributeNames["#a"]
	want := strVal(in.ExpressionAttributeValues[":v"])
	out := &dynamodb.QueryOutput{}
	for _, item := range f.items {
		if strVal(item[attr]) == want {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	return out, nil
}

// TransactWriteItems applies conditional Puts all-or-nothing.
func (f *fakeTable) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		code := "None"
		if ti.Put != nil && ti.Put.ConditionExpression != nil {
			if _, exists := f.items[strVal(ti.Put.Item[f.keyAttr])]; exists {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for _, ti := range in.TransactItems {
		if ti.Put != nil {
			f.items[strVal(ti.Put.Item[f.keyAttr])] = copyItem(ti.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
