package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const merchantDefaultsTable = "merchant_defaults"

// LookupMerchantDefaults matches merchantName against the stored patterns,
// case-insensitively and as a substring in either direction. The longest
// matching pattern wins.
func (s *store) LookupMerchantDefaults(ctx context.Context, merchantName string) (*entity.MerchantDefaults, error) {
	name := strings.ToLower(strings.TrimSpace(merchantName))
	if name == "" {
		return nil, nil
	}

	b := s.builder()
	q, args := b.Select("id", "merchant_name_pattern", "default_warranty_months", "default_return_days").
		From(b.Table(merchantDefaultsTable)).
		Query()

	var best *entity.MerchantDefaults
	err := s.query(ctx, q, args, func(rows *entsql.Rows) error {
		var (
			d        entity.MerchantDefaults
			warranty sql.NullInt64
			ret      sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.MerchantNamePattern, &warranty, &ret); err != nil {
			return fmt.Errorf("scan merchant defaults: %w", err)
		}
		pattern := strings.ToLower(strings.TrimSpace(d.MerchantNamePattern))
		if pattern == "" || !(strings.Contains(name, pattern) || strings.Contains(pattern, name)) {
			return nil
		}
		if best != nil && len(pattern) <= len(best.MerchantNamePattern) {
			return nil
		}
		d.DefaultWarrantyMonths = intPtr(warranty)
		d.DefaultReturnDays = intPtr(ret)
		best = &d
		return nil
	})
	if err != nil {
		s.logger.Error("repo.merchant_defaults.lookup_failed", "merchant", merchantName, "error", err)
		return nil, common.NewAppError("DB_ERROR", "lookup merchant defaults", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	if best != nil {
		s.logger.Debug("repo.merchant_defaults.matched", "merchant", merchantName, "pattern", best.MerchantNamePattern)
	}
	return best, nil
}

// UpsertMerchantDefaults inserts or replaces the row for d.MerchantNamePattern.
func (s *store) UpsertMerchantDefaults(ctx context.Context, d entity.MerchantDefaults) error {
	pattern := strings.TrimSpace(d.MerchantNamePattern)
	if pattern == "" {
		return common.NewAppError("INVALID_INPUT", "merchant name pattern is required", common.ErrInvalidInput)
	}
	q, args := s.builder().Insert(merchantDefaultsTable).
		Columns("merchant_name_pattern", "default_warranty_months", "default_return_days").
		Values(pattern, nullable(d.DefaultWarrantyMonths), nullable(d.DefaultReturnDays)).
		OnConflict(
			entsql.ConflictColumns("merchant_name_pattern"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := s.exec.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repo.merchant_defaults.upsert_failed", "pattern", pattern, "error", err)
		return common.NewAppError("DB_ERROR", "upsert merchant defaults", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return nil
}

// DefaultMerchantSeeds returns the built-in policy table. Norwegian shops
// carry the 14-day angrerett as their return window.
func DefaultMerchantSeeds() []entity.MerchantDefaults {
	seed := func(pattern string, warranty, ret int) entity.MerchantDefaults {
		w, r := warranty, ret
		return entity.MerchantDefaults{MerchantNamePattern: pattern, DefaultWarrantyMonths: &w, DefaultReturnDays: &r}
	}
	return []entity.MerchantDefaults{
		seed("Elkjøp", 24, 30),
		seed("Power", 24, 30),
		seed("Komplett", 24, 30),
		seed("NetOnNet", 24, 30),
		seed("Apple", 12, 14),
		seed("IKEA", 24, 365),
		seed("Clas Ohlson", 24, 30),
		seed("XXL", 24, 30),
		seed("Zalando", 0, 100),
		seed("H&M", 0, 30),
		seed("Zara", 0, 30),
		seed("Finn.no", 0, constants.AngrerettDays),
		seed("Amazon", 12, 30),
	}
}

// SeedMerchantDefaults upserts the built-in seeds followed by extra, so
// configured rows override built-in ones with the same pattern.
func SeedMerchantDefaults(ctx context.Context, st Store, extra []entity.MerchantDefaults) error {
	rows := append(DefaultMerchantSeeds(), extra...)
	return st.InTx(ctx, func(tx Store) error {
		for _, d := range rows {
			if err := tx.UpsertMerchantDefaults(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
}
