// Package recommender feeds the collaborative-filtering matrices in Redis.
//
// Layout per matrix m:
//
//	predictor:m:items:<set>  SET of items observed with set
//	predictor:m:sets:<item>  SET of sets item was observed in
//	predictor:all_items      SET of every item
//	predictor:users:last_active  ZSET user -> unix seconds
//
// References are "<enterprise>__<id>".
package recommender

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	MatrixUsers      = "users"
	MatrixCategories = "categories"
	MatrixTags       = "tags"
)

type Sink struct {
	rdb    redis.Cmdable
	prefix string
	logger ectologger.Logger
}

func NewSink(rdb redis.Cmdable, logger ectologger.Logger) *Sink {
	return &Sink{rdb: rdb, prefix: "predictor", logger: logger}
}

// Ref builds the reference used for users, products and taxa
func Ref(enterpriseID string, id string) string {
	return enterpriseID + "__" + id
}

func UserRef(u *models.User) string {
	return Ref(u.EnterpriseID, strconv.FormatInt(u.ID, 10))
}

func ProductRef(p *models.Product) string {
	return Ref(p.EnterpriseID, p.ID)
}

func (s *Sink) itemsKey(matrix, set string) string {
	return fmt.Sprintf("%s:%s:items:%s", s.prefix, matrix, set)
}

func (s *Sink) setsKey(matrix, item string) string {
	return fmt.Sprintf("%s:%s:sets:%s", s.prefix, matrix, item)
}

func (s *Sink) observe(ctx context.Context, matrix, set, item string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.itemsKey(matrix, set), item)
		pipe.SAdd(ctx, s.setsKey(matrix, item), set)
		pipe.SAdd(ctx, s.prefix+":all_items", item)
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"matrix": matrix,
			"set":    set,
			"item":   item,
		}).Error("Failed to record recommender observation")
		return fmt.Errorf("failed to observe %s in %s: %w", item, matrix, err)
	}
	return nil
}

// Observe records that user viewed product
func (s *Sink) Observe(ctx context.Context, user *models.User, product *models.Product) error {
	ctx, span := tracing.StartSpan(ctx, "recommender.Sink.Observe")
	defer span.End()

	return s.observe(ctx, MatrixUsers, UserRef(user), ProductRef(product))
}

// ObserveActivity records when user was last active
func (s *Sink) ObserveActivity(ctx context.Context, user *models.User, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "recommender.Sink.ObserveActivity")
	defer span.End()

	err := s.rdb.ZAdd(ctx, s.prefix+":users:last_active", redis.Z{
		Score:  float64(at.Unix()),
		Member: UserRef(user),
	}).Err()
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to record user activity")
		return fmt.Errorf("failed to observe activity: %w", err)
	}
	return nil
}

// ObserveCategory records product membership in a category
func (s *Sink) ObserveCategory(ctx context.Context, product *models.Product, category models.Taxon) error {
	ctx, span := tracing.StartSpan(ctx, "recommender.Sink.ObserveCategory")
	defer span.End()

	return s.observe(ctx, MatrixCategories, Ref(category.EnterpriseID, category.ID), ProductRef(product))
}

// ObserveTag records product membership in a tag
func (s *Sink) ObserveTag(ctx context.Context, product *models.Product, tag models.Taxon) error {
	ctx, span := tracing.StartSpan(ctx, "recommender.Sink.ObserveTag")
	defer span.End()

	return s.observe(ctx, MatrixTags, Ref(tag.EnterpriseID, tag.ID), ProductRef(product))
}
