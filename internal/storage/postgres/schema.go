package postgres

import (
	"context"
	"fmt"
)

// Schema holds the DDL for every table the pipeline owns. Staging mirrors
// the latest fetch; product holds only recency-filtered rows and cascades
// child deletion so pruning a header removes its children.
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id              BIGSERIAL PRIMARY KEY,
	source          TEXT        NOT NULL,
	locale          TEXT        NOT NULL,
	item_id         BIGINT      NOT NULL,
	requested_url   TEXT        NOT NULL,
	keyword         TEXT        NOT NULL,
	tier            SMALLINT    NOT NULL,
	page            INT         NOT NULL,
	priority        INT         NOT NULL,
	status          TEXT        NOT NULL DEFAULT 'queued',
	attempts        INT         NOT NULL DEFAULT 0,
	max_attempts    INT         NOT NULL DEFAULT 3,
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	claimed_by      TEXT,
	claimed_at      TIMESTAMPTZ,
	invalid_reason  TEXT,
	http_status     INT,
	last_error      TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, locale, item_id)
);

CREATE INDEX IF NOT EXISTS crawl_jobs_claim_idx
	ON crawl_jobs (status, next_attempt_at, priority, created_at);

CREATE TABLE IF NOT EXISTS keyword_feedback (
	keyword               TEXT PRIMARY KEY,
	is_stale              BOOLEAN     NOT NULL DEFAULT FALSE,
	stale_page            INT,
	oldest_published_seen TIMESTAMPTZ,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stg_recipes (
	item_id        BIGINT PRIMARY KEY,
	source         TEXT NOT NULL,
	locale         TEXT NOT NULL,
	url            TEXT,
	name           TEXT,
	description    TEXT,
	hero_image     TEXT,
	date_published TIMESTAMPTZ,
	date_modified  TIMESTAMPTZ,
	cuisine        TEXT,
	author_name    TEXT,
	author_url     TEXT,
	keywords_raw   TEXT,
	bookmark_count INT,
	like_count     INT,
	comment_count  INT,
	job_id         BIGINT REFERENCES crawl_jobs(id) ON DELETE SET NULL,
	keyword        TEXT,
	page           INT,
	raw_blob_uri   TEXT,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stg_recipe_keywords (
	item_id BIGINT NOT NULL REFERENCES stg_recipes(item_id) ON DELETE CASCADE,
	keyword TEXT   NOT NULL,
	PRIMARY KEY (item_id, keyword)
);

CREATE TABLE IF NOT EXISTS stg_recipe_ingredients (
	item_id    BIGINT NOT NULL REFERENCES stg_recipes(item_id) ON DELETE CASCADE,
	position   INT    NOT NULL,
	ingredient TEXT   NOT NULL,
	PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS stg_recipe_steps (
	item_id    BIGINT NOT NULL REFERENCES stg_recipes(item_id) ON DELETE CASCADE,
	position   INT    NOT NULL,
	step_text  TEXT,
	step_image TEXT,
	PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS stg_recipe_comments (
	item_id        BIGINT NOT NULL REFERENCES stg_recipes(item_id) ON DELETE CASCADE,
	text_hash      TEXT   NOT NULL,
	author_name    TEXT,
	author_url     TEXT,
	comment_url    TEXT,
	date_published TIMESTAMPTZ,
	comment_text   TEXT NOT NULL,
	PRIMARY KEY (item_id, text_hash)
);

CREATE TABLE IF NOT EXISTS recipes (
	item_id        BIGINT PRIMARY KEY,
	source         TEXT NOT NULL,
	locale         TEXT NOT NULL,
	url            TEXT,
	name           TEXT,
	description    TEXT,
	hero_image     TEXT,
	date_published TIMESTAMPTZ,
	date_modified  TIMESTAMPTZ,
	cuisine        TEXT,
	author_name    TEXT,
	author_url     TEXT,
	keywords_raw   TEXT,
	bookmark_count INT,
	like_count     INT,
	comment_count  INT,
	promoted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipe_keywords (
	item_id BIGINT NOT NULL REFERENCES recipes(item_id) ON DELETE CASCADE,
	keyword TEXT   NOT NULL,
	PRIMARY KEY (item_id, keyword)
);

CREATE TABLE IF NOT EXISTS recipe_ingredients (
	item_id    BIGINT NOT NULL REFERENCES recipes(item_id) ON DELETE CASCADE,
	position   INT    NOT NULL,
	ingredient TEXT   NOT NULL,
	PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS recipe_steps (
	item_id    BIGINT NOT NULL REFERENCES recipes(item_id) ON DELETE CASCADE,
	position   INT    NOT NULL,
	step_text  TEXT,
	step_image TEXT,
	PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS recipe_comments (
	item_id        BIGINT NOT NULL REFERENCES recipes(item_id) ON DELETE CASCADE,
	text_hash      TEXT   NOT NULL,
	author_name    TEXT,
	author_url     TEXT,
	comment_url    TEXT,
	date_published TIMESTAMPTZ,
	comment_text   TEXT NOT NULL,
	PRIMARY KEY (item_id, text_hash)
);
`

// EnsureSchema applies the DDL. Statements are idempotent.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
