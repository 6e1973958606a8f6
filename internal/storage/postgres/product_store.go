package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProductStore implements harvest.Promoter: it moves staging aggregates
// into the curated product tables under a recency cutoff.
type ProductStore struct {
	db DB
}

// NewProductStore constructs a ProductStore.
func NewProductStore(db DB) *ProductStore {
	return &ProductStore{db: db}
}

// PromoteIfRecent copies one staging aggregate into product. Returns false
// without touching product when the staging row is absent, or its
// publication date is null or strictly before cutoff. The boundary is
// inclusive: a date equal to cutoff promotes.
func (p *ProductStore) PromoteIfRecent(ctx context.Context, itemID int64, cutoff time.Time) (bool, error) {
	var datePublished *time.Time
	err := p.db.QueryRow(ctx,
		`SELECT date_published FROM stg_recipes WHERE item_id = $1;`, itemID,
	).Scan(&datePublished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read staging header: %w", err)
	}
	if datePublished == nil || datePublished.Before(cutoff) {
		return false, nil
	}

	err = withTx(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recipes
				(item_id, source, locale, url, name, description, hero_image,
				 date_published, date_modified, cuisine, author_name, author_url,
				 keywords_raw, bookmark_count, like_count, comment_count, promoted_at)
			SELECT item_id, source, locale, url, name, description, hero_image,
				 date_published, date_modified, cuisine, author_name, author_url,
				 keywords_raw, bookmark_count, like_count, comment_count, now()
			FROM stg_recipes WHERE item_id = $1
			ON CONFLICT (item_id) DO UPDATE SET
				source = EXCLUDED.source,
				locale = EXCLUDED.locale,
				url = EXCLUDED.url,
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				hero_image = EXCLUDED.hero_image,
				date_published = EXCLUDED.date_published,
				date_modified = EXCLUDED.date_modified,
				cuisine = EXCLUDED.cuisine,
				author_name = EXCLUDED.author_name,
				author_url = EXCLUDED.author_url,
				keywords_raw = EXCLUDED.keywords_raw,
				bookmark_count = EXCLUDED.bookmark_count,
				like_count = EXCLUDED.like_count,
				comment_count = EXCLUDED.comment_count,
				promoted_at = now();`,
			itemID,
		); err != nil {
			return fmt.Errorf("upsert product header: %w", err)
		}

		// Replace children wholesale so a shorter staging list leaves no
		// stale trailing rows behind.
		type childCopy struct {
			product string
			staging string
			columns string
		}
		for _, c := range []childCopy{
			{"recipe_keywords", "stg_recipe_keywords", "item_id, keyword"},
			{"recipe_ingredients", "stg_recipe_ingredients", "item_id, position, ingredient"},
			{"recipe_steps", "stg_recipe_steps", "item_id, position, step_text, step_image"},
			{"recipe_comments", "stg_recipe_comments", "item_id, text_hash, author_name, author_url, comment_url, date_published, comment_text"},
		} {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE item_id = $1;`, c.product), itemID,
			); err != nil {
				return fmt.Errorf("clear %s: %w", c.product, err)
			}
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s WHERE item_id = $1;`,
					c.product, c.columns, c.columns, c.staging),
				itemID,
			); err != nil {
				return fmt.Errorf("copy %s: %w", c.product, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("promote item %d: %w", itemID, err)
	}
	return true, nil
}

// PromoteRecentRecipes batch-promotes staging candidates with a non-null
// publication date on/after cutoff, most recent first, up to limit. Used
// for scheduled reconciliation independent of per-job promotion.
func (p *ProductStore) PromoteRecentRecipes(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := p.db.Query(ctx, `
		SELECT item_id FROM stg_recipes
		WHERE date_published IS NOT NULL AND date_published >= $1
		ORDER BY date_published DESC
		LIMIT $2;`,
		cutoff, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("select promotion candidates: %w", err)
	}
	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan promotion candidate: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate promotion candidates: %w", err)
	}

	promoted := 0
	for _, id := range ids {
		ok, err := p.PromoteIfRecent(ctx, id, cutoff)
		if err != nil {
			return promoted, err
		}
		if ok {
			promoted++
		}
	}
	return promoted, nil
}

// PruneOlderThan deletes product rows published strictly before cutoff.
// Children disappear via ON DELETE CASCADE.
func (p *ProductStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM recipes WHERE date_published < $1;`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune product recipes: %w", err)
	}
	return tag.RowsAffected(), nil
}
