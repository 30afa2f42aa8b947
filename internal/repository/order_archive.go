package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	pkgconfig "github.com/cloud-wave-best-zizon/checkout-service/pkg/config"
)

// OrderArchive stores a read-optimized copy of placed orders. The SQL
// database stays the source of truth.
type OrderArchive interface {
	Put(ctx context.Context, order *domain.Order) error
}

type archivedItem struct {
	Target     string `dynamodbav:"target"`
	Quantity   int    `dynamodbav:"quantity"`
	UnitPrice  string `dynamodbav:"unit_price"`
	TotalPrice string `dynamodbav:"total_price"`
}

type archivedOrder struct {
	OrderID        int64          `dynamodbav:"order_id"`
	OrderNumber    string         `dynamodbav:"order_number"`
	UserID         string         `dynamodbav:"user_id"`
	Status         string         `dynamodbav:"status"`
	Subtotal       string         `dynamodbav:"subtotal"`
	DiscountAmount string         `dynamodbav:"discount_amount"`
	ShippingCost   string         `dynamodbav:"shipping_cost"`
	TaxAmount      string         `dynamodbav:"tax_amount"`
	TotalAmount    string         `dynamodbav:"total_amount"`
	Items          []archivedItem `dynamodbav:"items"`
	CreatedAt      time.Time      `dynamodbav:"created_at"`
}

type DynamoOrderArchive struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoDBClient(ctx context.Context, cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func NewDynamoOrderArchive(client *dynamodb.Client, tableName string) *DynamoOrderArchive {
	return &DynamoOrderArchive{
		client:    client,
		tableName: tableName,
	}
}

func (a *DynamoOrderArchive) Put(ctx context.Context, order *domain.Order) error {
	av, err := attributevalue.MarshalMap(toArchived(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	av["PK"] = &types.AttributeValueMemberS{Value: "ORDER#" + order.OrderNumber}
	av["SK"] = &types.AttributeValueMemberS{Value: "METADATA"}
	av["GSI1PK"] = &types.AttributeValueMemberS{Value: "USER#" + order.UserID}
	av["GSI1SK"] = &types.AttributeValueMemberS{Value: "ORDER#" + order.CreatedAt.UTC().Format(time.RFC3339)}

	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func toArchived(o *domain.Order) archivedOrder {
	items := make([]archivedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, archivedItem{
			Target:     it.LineTarget.String(),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.StringFixed(2),
			TotalPrice: it.TotalPrice.StringFixed(2),
		})
	}
	return archivedOrder{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Subtotal:       o.Subtotal.StringFixed(2),
		DiscountAmount: o.DiscountAmount.StringFixed(2),
		ShippingCost:   o.ShippingCost.StringFixed(2),
		TaxAmount:      o.TaxAmount.StringFixed(2),
		TotalAmount:    o.TotalAmount.StringFixed(2),
		Items:          items,
		CreatedAt:      o.CreatedAt.UTC(),
	}
}

// NopOrderArchive is used when archiving is disabled.
type NopOrderArchive struct{}

func (NopOrderArchive) Put(context.Context, *domain.Order) error { return nil }
