package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

// StagingStore writes extracted recipe aggregates into the staging tables.
type StagingStore struct {
	db DB
}

// NewStagingStore constructs a StagingStore.
func NewStagingStore(db DB) *StagingStore {
	return &StagingStore{db: db}
}

// WriteStaging upserts the staging header and replaces every child
// collection in one transaction. Children are deleted then reinserted from
// the fresh extraction, never diffed, so staging always mirrors the latest
// fetch.
func (s *StagingStore) WriteStaging(ctx context.Context, job *harvest.CrawlJob, rec *harvest.Recipe, rawBlobURI string) error {
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stg_recipes
				(item_id, source, locale, url, name, description, hero_image,
				 date_published, date_modified, cuisine, author_name, author_url,
				 keywords_raw, bookmark_count, like_count, comment_count,
				 job_id, keyword, page, raw_blob_uri, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
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
				job_id = EXCLUDED.job_id,
				keyword = EXCLUDED.keyword,
				page = EXCLUDED.page,
				raw_blob_uri = EXCLUDED.raw_blob_uri,
				updated_at = now();`,
			rec.ItemID,
			job.Source,
			job.Locale,
			textOrNil(rec.URL),
			textOrNil(rec.Name),
			textOrNil(rec.Description),
			textOrNil(rec.HeroImage),
			rec.DatePublished,
			rec.DateModified,
			textOrNil(rec.Cuisine),
			textOrNil(rec.AuthorName),
			textOrNil(rec.AuthorURL),
			textOrNil(rec.KeywordsRaw),
			rec.BookmarkCount,
			rec.LikeCount,
			rec.CommentCount,
			job.ID,
			job.Keyword,
			job.Page,
			textOrNil(rawBlobURI),
		); err != nil {
			return fmt.Errorf("upsert staging header: %w", err)
		}

		for _, table := range []string{
			"stg_recipe_keywords",
			"stg_recipe_ingredients",
			"stg_recipe_steps",
			"stg_recipe_comments",
		} {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE item_id = $1;`, table), rec.ItemID,
			); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, kw := range rec.Keywords {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stg_recipe_keywords (item_id, keyword)
				VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
				rec.ItemID, kw,
			); err != nil {
				return fmt.Errorf("insert staging keyword: %w", err)
			}
		}
		for i, ing := range rec.Ingredients {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stg_recipe_ingredients (item_id, position, ingredient)
				VALUES ($1, $2, $3);`,
				rec.ItemID, i, ing,
			); err != nil {
				return fmt.Errorf("insert staging ingredient: %w", err)
			}
		}
		for i, step := range rec.Steps {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stg_recipe_steps (item_id, position, step_text, step_image)
				VALUES ($1, $2, $3, $4);`,
				rec.ItemID, i, textOrNil(step.Text), textOrNil(step.Image),
			); err != nil {
				return fmt.Errorf("insert staging step: %w", err)
			}
		}
		for _, c := range rec.Comments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stg_recipe_comments
					(item_id, text_hash, author_name, author_url, comment_url, date_published, comment_text)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (item_id, text_hash) DO NOTHING;`,
				rec.ItemID, c.TextHash, textOrNil(c.AuthorName), textOrNil(c.AuthorURL),
				textOrNil(c.URL), c.DatePublished, c.Text,
			); err != nil {
				return fmt.Errorf("insert staging comment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write staging for item %d: %w", rec.ItemID, err)
	}
	return nil
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
