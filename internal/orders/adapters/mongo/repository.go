package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	couponsmongo "github.com/dejobratic/storefront/internal/coupons/adapters/mongo"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type itemDocument struct {
	ProductID      string `bson:"product_id"`
	VariantID      string `bson:"variant_id,omitempty"`
	Name           string `bson:"name"`
	CategoryID     string `bson:"category_id,omitempty"`
	Quantity       int    `bson:"quantity"`
	UnitPriceCents int64  `bson:"unit_price_cents"`
	Size           string `bson:"size,omitempty"`
	Color          string `bson:"color,omitempty"`
}

type orderDocument struct {
	ID                string         `bson:"_id"`
	OrderNumber       string         `bson:"order_number"`
	CustomerEmail     string         `bson:"customer_email"`
	Status            string         `bson:"status"`
	PaymentStatus     string         `bson:"payment_status"`
	Items             []itemDocument `bson:"items"`
	SubtotalCents     int64          `bson:"subtotal_cents"`
	DiscountCents     int64          `bson:"discount_cents"`
	TaxCents          int64          `bson:"tax_cents"`
	ShippingCents     int64          `bson:"shipping_cents"`
	TotalCents        int64          `bson:"total_cents"`
	CouponCode        string         `bson:"coupon_code,omitempty"`
	TrackingNumber    string         `bson:"tracking_number"`
	ShippingCarrier   string         `bson:"shipping_carrier"`
	EstimatedDelivery *time.Time     `bson:"estimated_delivery,omitempty"`
	Notes             string         `bson:"notes"`
	CreatedAt         time.Time      `bson:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at"`
}

type Repository struct {
	client  *mongo.Client
	orders  *mongo.Collection
	coupons *mongo.Collection
}

func NewRepository(store *database.MongoStore) *Repository {
	return &Repository{
		client:  store.Client,
		orders:  store.DB.Collection(database.OrdersCollection),
		coupons: store.DB.Collection(database.CouponsCollection),
	}
}

// Create inserts the order and redeems its coupon inside one session
// transaction. The server must run as a replica set.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	doc := toDocument(order)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if order.CouponCode != "" {
			if err := couponsmongo.Redeem(sc, r.coupons, order.CouponCode, order.CreatedAt); err != nil {
				return nil, err
			}
		}
		if _, err := r.orders.InsertOne(sc, doc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrDuplicateOrderNumber
		}
		return err
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}

	order := fromDocument(doc)
	return &order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if filter.PaymentStatus != nil {
		query["payment_status"] = string(*filter.PaymentStatus)
	}
	if filter.CustomerEmail != "" {
		query["customer_email"] = filter.CustomerEmail
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []domain.Order{}
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, fromDocument(doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus uses FindOneAndUpdate so the guard check and the write are a
// single operation. The pre-image supplies the replaced status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*ports.StatusChange, error) {
	filter := bson.M{"_id": id}
	if len(update.AllowedFrom) > 0 {
		allowed := make(bson.A, 0, len(update.AllowedFrom))
		for _, s := range update.AllowedFrom {
			allowed = append(allowed, string(s))
		}
		filter["status"] = bson.M{"$in": allowed}
	}

	set := bson.M{
		"status":     string(update.Status),
		"updated_at": update.UpdatedAt,
	}
	if update.TrackingNumber != nil {
		set["tracking_number"] = *update.TrackingNumber
	}
	if update.ShippingCarrier != nil {
		set["shipping_carrier"] = *update.ShippingCarrier
	}
	if update.EstimatedDelivery != nil {
		set["estimated_delivery"] = update.EstimatedDelivery.UTC()
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
	}

	var before orderDocument
	err := r.orders.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOrConflict(ctx, id)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	order := fromDocument(before)
	order.Apply(update)

	return &ports.StatusChange{Order: order, Previous: domain.OrderStatus(before.Status)}, nil
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, update ports.PaymentUpdate) (*ports.PaymentChange, error) {
	set := bson.M{
		"payment_status": string(update.Status),
		"updated_at":     update.UpdatedAt,
	}

	var before orderDocument
	err := r.orders.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	order := fromDocument(before)
	order.PaymentStatus = update.Status
	order.UpdatedAt = update.UpdatedAt

	return &ports.PaymentChange{Order: order, Previous: domain.PaymentStatus(before.PaymentStatus)}, nil
}

func (r *Repository) missOrConflict(ctx context.Context, id string) error {
	count, err := r.orders.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if count == 0 {
		return ports.ErrNotFound
	}
	return ports.ErrStatusConflict
}

func toDocument(o domain.Order) orderDocument {
	items := make([]itemDocument, len(o.Items))
	for i, item := range o.Items {
		items[i] = itemDocument(item)
	}

	return orderDocument{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		CustomerEmail:     o.CustomerEmail,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		Items:             items,
		SubtotalCents:     o.SubtotalCents,
		DiscountCents:     o.DiscountCents,
		TaxCents:          o.TaxCents,
		ShippingCents:     o.ShippingCents,
		TotalCents:        o.TotalCents,
		CouponCode:        o.CouponCode,
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		EstimatedDelivery: o.EstimatedDelivery,
		Notes:             o.Notes,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func fromDocument(doc orderDocument) domain.Order {
	items := make([]domain.Item, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = domain.Item(item)
	}

	order := domain.Order{
		ID:              doc.ID,
		OrderNumber:     doc.OrderNumber,
		CustomerEmail:   doc.CustomerEmail,
		Status:          domain.OrderStatus(doc.Status),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		Items:           items,
		SubtotalCents:   doc.SubtotalCents,
		DiscountCents:   doc.DiscountCents,
		TaxCents:        doc.TaxCents,
		ShippingCents:   doc.ShippingCents,
		TotalCents:      doc.TotalCents,
		CouponCode:      doc.CouponCode,
		TrackingNumber:  doc.TrackingNumber,
		ShippingCarrier: doc.ShippingCarrier,
		Notes:           doc.Notes,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}
	if doc.EstimatedDelivery != nil {
		eta := doc.EstimatedDelivery.UTC()
		order.EstimatedDelivery = &eta
	}

	return order
}
