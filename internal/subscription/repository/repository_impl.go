package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/internal/subscription/domain"
	"github.com/smallops/dealdesk/pkg/db/option"
	"github.com/smallops/dealdesk/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	store repository.Repository[domain.Subscription]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{store: repository.ProvideStore[domain.Subscription](db)}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Subscription, error) {
	return r.store.WithTrx(db).FindOne(ctx, &domain.Subscription{ID: id, OrgID: orgID})
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]domain.Subscription, error) {
	rows, err := r.store.WithTrx(db).Find(ctx, &domain.Subscription{OrgID: orgID, CustomerID: customerID},
		option.WithSortBy(option.QuerySortBy{}),
	)
	if err != nil {
		return nil, err
	}

	subs := make([]domain.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, *row)
	}
	return subs, nil
}
