package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"scooby-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	skIdentity  = "IDENTITY#"
	counterKey  = "COUNTER#message"

	// UserIndex is the GSI over conversation META items keyed by user.
	UserIndex = "GSI1"

	// Fixed width so that sort keys order lexically by time.
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores conversations and wallet identities in a single DynamoDB table.
//
// Layout:
//
//	CONV#<id>     MSG#<time>#<message id>   one item per turn
//	CONV#<id>     META#                     latest activity, GSI1 keyed by user
//	WALLET#<addr> IDENTITY#                 wallet identity
//	COUNTER#message COUNTER#message         message id sequence
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newID     func() string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now, newID: uuid.NewString}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

func msgSK(ts time.Time, messageID int64) string {
	return fmt.Sprintf("%s%s#%012d", skPrefixMsg, ts.UTC().Format(sortableTime), messageID)
}

func walletPK(address string) string {
	return "WALLET#" + address
}

func userGSIKey(userID string) string {
	return "USER#" + userID
}

func (c *Client) AppendTurn(ctx context.Context, turn domain.ConversationTurn) (domain.ConversationTurn, error) {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return domain.ConversationTurn{}, errors.New("repository: AppendTurn: conversation id is required")
	}
	if strings.TrimSpace(turn.UserQuestion) == "" {
		return domain.ConversationTurn{}, errors.New("repository: AppendTurn: user question is required")
	}

	id, err := c.nextMessageID(ctx)
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	turn.MessageID = id
	turn.CreatedAt = c.now().UTC()

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: c.metaUpdate(turn),
			},
		},
	})
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return turn, nil
}

// nextMessageID bumps the table-wide message sequence.
func (c *Client) nextMessageID(ctx context.Context) (int64, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterKey},
			"SK": &types.AttributeValueMemberS{Value: counterKey},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	if out == nil {
		return 0, errors.New("next message id: empty response")
	}
	return int64Attr(out.Attributes, "seq")
}

// GetHistory reads newest first so Limit keeps the most recent turns. The
// user filter is applied by DynamoDB after Limit.
func (c *Client) GetHistory(ctx context.Context, conversationID, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if userID != "" {
		in.FilterExpression = aws.String("userId = :uid")
		in.ExpressionAttributeValues[":uid"] = &types.AttributeValueMemberS{Value: userID}
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.ConversationTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	reverseTurns(turns)
	return turns, nil
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var items []map[string]types.AttributeValue
	var err error
	if userID != "" {
		items, err = c.queryUserMeta(ctx, userID)
	} else {
		items, err = c.scanMeta(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: ListConversations: %w", err)
	}

	out := make([]domain.ConversationSummary, 0, len(items))
	for _, item := range items {
		s, err := itemToSummary(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListConversations unmarshal: %w", err)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (c *Client) queryUserMeta(ctx context.Context, userID string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			IndexName:              aws.String(UserIndex),
			KeyConditionExpression: aws.String("GSI1PK = :gpk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":gpk": &types.AttributeValueMemberS{Value: userGSIKey(userID)},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", UserIndex, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (c *Client) scanMeta(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(c.tableName),
			FilterExpression: aws.String("SK = :meta"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":meta": &types.AttributeValueMemberS{Value: skMeta},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

// ResolveWallet is idempotent under concurrent first use: the losing writer
// of the conditional put reads back the winner's identity.
func (c *Client) ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error) {
	addr := domain.NormalizeWallet(walletAddress)
	if addr == "" {
		return domain.Identity{}, ErrInvalidWallet
	}

	existing, ok, err := c.getIdentity(ctx, addr, false)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet: %w", err)
	}
	if ok {
		return existing, nil
	}

	id := domain.Identity{UserID: c.newID(), WalletAddress: addr, CreatedAt: c.now().UTC()}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                identityItem(id),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return id, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet put: %w", err)
	}
	existing, ok, err = c.getIdentity(ctx, addr, true)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet: %w", err)
	}
	if !ok {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet: identity for %s vanished", addr)
	}
	return existing, nil
}

func (c *Client) getIdentity(ctx context.Context, addr string, consistent bool) (domain.Identity, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: walletPK(addr)},
			"SK": &types.AttributeValueMemberS{Value: skIdentity},
		},
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("get identity: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Identity{}, false, nil
	}
	id, err := itemToIdentity(out.Item)
	if err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

func turnItem(t domain.ConversationTurn) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":                &types.AttributeValueMemberS{Value: convPK(t.ConversationID)},
		"SK":                &types.AttributeValueMemberS{Value: msgSK(t.CreatedAt, t.MessageID)},
		"messageId":         &types.AttributeValueMemberN{Value: strconv.FormatInt(t.MessageID, 10)},
		"conversationId":    &types.AttributeValueMemberS{Value: t.ConversationID},
		"userQuestion":      &types.AttributeValueMemberS{Value: t.UserQuestion},
		"rewrittenQuestion": &types.AttributeValueMemberS{Value: t.RewrittenQuestion},
		"intent":            &types.AttributeValueMemberS{Value: string(t.Intent)},
		"aiAnswer":          &types.AttributeValueMemberS{Value: t.AIAnswer},
		"createdAt":         &types.AttributeValueMemberS{Value: t.CreatedAt.UTC().Format(sortableTime)},
	}
	if t.UserID != "" {
		item["userId"] = &types.AttributeValueMemberS{Value: t.UserID}
	}
	return item
}

// metaUpdate refreshes the conversation summary. The owner is only ever set,
// never removed, so an anonymous turn keeps the conversation listed for the
// user who started it.
func (c *Client) metaUpdate(t domain.ConversationTurn) *types.Update {
	ts := t.CreatedAt.UTC().Format(sortableTime)
	expr := "SET conversationId = :cid, lastMessageAt = :ts, preview = :preview, GSI1SK = :ts"
	values := map[string]types.AttributeValue{
		":cid":     &types.AttributeValueMemberS{Value: t.ConversationID},
		":ts":      &types.AttributeValueMemberS{Value: ts},
		":preview": &types.AttributeValueMemberS{Value: domain.Preview(t.UserQuestion)},
	}
	if t.UserID != "" {
		expr += ", userId = :uid, GSI1PK = :gpk"
		values[":uid"] = &types.AttributeValueMemberS{Value: t.UserID}
		values[":gpk"] = &types.AttributeValueMemberS{Value: userGSIKey(t.UserID)}
	}
	return &types.Update{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(t.ConversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	}
}

func identityItem(id domain.Identity) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: walletPK(id.WalletAddress)},
		"SK":            &types.AttributeValueMemberS{Value: skIdentity},
		"userId":        &types.AttributeValueMemberS{Value: id.UserID},
		"walletAddress": &types.AttributeValueMemberS{Value: id.WalletAddress},
		"createdAt":     &types.AttributeValueMemberS{Value: id.CreatedAt.UTC().Format(sortableTime)},
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.ConversationTurn, error) {
	id, err := int64Attr(item, "messageId")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	convID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	question, err := strAttr(item, "userQuestion")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	created, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	// optional attributes
	userID, _ := strAttr(item, "userId")
	rewritten, _ := strAttr(item, "rewrittenQuestion")
	intent, _ := strAttr(item, "intent")
	answer, _ := strAttr(item, "aiAnswer")

	return domain.ConversationTurn{
		MessageID:         id,
		UserID:            userID,
		ConversationID:    convID,
		UserQuestion:      question,
		RewrittenQuestion: rewritten,
		Intent:            domain.Intent(intent),
		AIAnswer:          answer,
		CreatedAt:         created,
	}, nil
}

func itemToSummary(item map[string]types.AttributeValue) (domain.ConversationSummary, error) {
	convID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	last, err := timeAttr(item, "lastMessageAt")
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	preview, _ := strAttr(item, "preview")
	return domain.ConversationSummary{ConversationID: convID, LastMessageAt: last, Preview: preview}, nil
}

func itemToIdentity(item map[string]types.AttributeValue) (domain.Identity, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.Identity{}, err
	}
	addr, err := strAttr(item, "walletAddress")
	if err != nil {
		return domain.Identity{}, err
	}
	created, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: userID, WalletAddress: addr, CreatedAt: created}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}
