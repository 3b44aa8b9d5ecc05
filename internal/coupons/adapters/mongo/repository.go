package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type couponDocument struct {
	Code                 string               `bson:"_id"`
	Description          string               `bson:"description"`
	DiscountType         string               `bson:"discount_type"`
	DiscountValue        primitive.Decimal128 `bson:"discount_value"`
	MinimumPurchaseCents int64                `bson:"minimum_purchase_cents"`
	StartDate            time.Time            `bson:"start_date"`
	ExpiryDate           time.Time            `bson:"expiry_date"`
	UsageLimit           int                  `bson:"usage_limit"`
	UsageCount           int                  `bson:"usage_count"`
	IsActive             bool                 `bson:"is_active"`
	AppliesTo            string               `bson:"applies_to"`
	ApplicableCategories []string             `bson:"applicable_categories"`
	ApplicableProducts   []string             `bson:"applicable_products"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
}

type Repository struct {
	coll *mongo.Collection
}

func NewRepository(coll *mongo.Collection) *Repository {
	return &Repository{coll: coll}
}

func (r *Repository) Create(ctx context.Context, coupon domain.Coupon) error {
	doc, err := toDocument(coupon)
	if err != nil {
		return err
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrCodeTaken
		}
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var doc couponDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}

	return fromDocument(doc)
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Coupon, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := bson.M{}
	if filter.Active != nil {
		query["is_active"] = *filter.Active
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find coupons: %w", err)
	}
	defer cursor.Close(ctx)

	coupons := []domain.Coupon{}
	for cursor.Next(ctx) {
		var doc couponDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode coupon: %w", err)
		}
		coupon, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *coupon)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}

	return coupons, nil
}

// Update rewrites the editable fields. usage_count and created_at are left alone.
func (r *Repository) Update(ctx context.Context, coupon domain.Coupon) error {
	value, err := primitive.ParseDecimal128(coupon.DiscountValue.String())
	if err != nil {
		return fmt.Errorf("encode discount_value: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"description":            coupon.Description,
		"discount_type":          string(coupon.DiscountType),
		"discount_value":         value,
		"minimum_purchase_cents": coupon.MinimumPurchaseCents,
		"start_date":             coupon.StartDate,
		"expiry_date":            coupon.ExpiryDate,
		"usage_limit":            coupon.UsageLimit,
		"is_active":              coupon.IsActive,
		"applies_to":             string(coupon.AppliesTo),
		"applicable_categories":  nonNil(coupon.ApplicableCategories),
		"applicable_products":    nonNil(coupon.ApplicableProducts),
		"updated_at":             coupon.UpdatedAt,
	}}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": coupon.Code}, update)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}

	if result.MatchedCount == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, code string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": code})
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}

	if result.DeletedCount == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Redeem(ctx context.Context, code string, at time.Time) error {
	return Redeem(ctx, r.coll, code, at)
}

func (r *Repository) Release(ctx context.Context, code string) error {
	filter := bson.M{"_id": code, "usage_count": bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{"usage_count": -1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}

	return nil
}

// Redeem performs the guarded increment as one UpdateOne. ctx may carry a
// session so the write joins an open transaction.
func Redeem(ctx context.Context, coll *mongo.Collection, code string, at time.Time) error {
	filter := bson.M{
		"_id":         code,
		"is_active":   true,
		"start_date":  bson.M{"$lte": at},
		"expiry_date": bson.M{"$gte": at},
		"$or": bson.A{
			bson.M{"usage_limit": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}

	if result.MatchedCount == 1 {
		return nil
	}

	var doc couponDocument
	if err := coll.FindOne(ctx, bson.M{"_id": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("check coupon: %w", err)
	}
	coupon, err := fromDocument(doc)
	if err != nil {
		return err
	}

	return ports.RedeemError(coupon.Redeemable(at))
}

func toDocument(c domain.Coupon) (couponDocument, error) {
	value, err := primitive.ParseDecimal128(c.DiscountValue.String())
	if err != nil {
		return couponDocument{}, fmt.Errorf("encode discount_value: %w", err)
	}

	return couponDocument{
		Code:                 c.Code,
		Description:          c.Description,
		DiscountType:         string(c.DiscountType),
		DiscountValue:        value,
		MinimumPurchaseCents: c.MinimumPurchaseCents,
		StartDate:            c.StartDate,
		ExpiryDate:           c.ExpiryDate,
		UsageLimit:           c.UsageLimit,
		UsageCount:           c.UsageCount,
		IsActive:             c.IsActive,
		AppliesTo:            string(c.AppliesTo),
		ApplicableCategories: nonNil(c.ApplicableCategories),
		ApplicableProducts:   nonNil(c.ApplicableProducts),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}, nil
}

func fromDocument(doc couponDocument) (*domain.Coupon, error) {
	value, err := decimal.NewFromString(doc.DiscountValue.String())
	if err != nil {
		return nil, fmt.Errorf("decode discount_value: %w", err)
	}

	return &domain.Coupon{
		Code:                 doc.Code,
		Description:          doc.Description,
		DiscountType:         domain.DiscountType(doc.DiscountType),
		DiscountValue:        value,
		MinimumPurchaseCents: doc.MinimumPurchaseCents,
		StartDate:            doc.StartDate.UTC(),
		ExpiryDate:           doc.ExpiryDate.UTC(),
		UsageLimit:           doc.UsageLimit,
		UsageCount:           doc.UsageCount,
		IsActive:             doc.IsActive,
		AppliesTo:            domain.Scope(doc.AppliesTo),
		ApplicableCategories: doc.ApplicableCategories,
		ApplicableProducts:   doc.ApplicableProducts,
		CreatedAt:            doc.CreatedAt.UTC(),
		UpdatedAt:            doc.UpdatedAt.UTC(),
	}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
