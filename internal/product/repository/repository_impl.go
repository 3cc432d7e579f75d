package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/internal/product/domain"
	"github.com/smallops/dealdesk/pkg/db/option"
	"github.com/smallops/dealdesk/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	store repository.Repository[domain.Plan]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{store: repository.ProvideStore[domain.Plan](db)}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Plan, error) {
	return r.store.WithTrx(db).FindOne(ctx, &domain.Plan{ID: id, OrgID: orgID})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, search string) ([]domain.Plan, error) {
	rows, err := r.store.WithTrx(db).Find(ctx, &domain.Plan{OrgID: orgID},
		option.WithSearch(search, "name", "code"),
		option.WithSortBy(option.QuerySortBy{Field: "code", Allow: map[string]bool{"code": true}}),
	)
	if err != nil {
		return nil, err
	}

	plans := make([]domain.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, *row)
	}
	return plans, nil
}
