package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables used by Repository. Asset columns hold blob keys
// and are NULL when the asset is absent.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          BIGSERIAL PRIMARY KEY,
	name        VARCHAR(100) NOT NULL,
	slug        VARCHAR(100) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_key   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT categories_slug_key UNIQUE (slug)
);

CREATE TABLE IF NOT EXISTS videos (
	id            BIGSERIAL PRIMARY KEY,
	title         VARCHAR(200) NOT NULL,
	slug          VARCHAR(200) NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	payload_key   TEXT,
	thumbnail_key TEXT,
	category_id   BIGINT REFERENCES categories(id) ON DELETE SET NULL,
	status        VARCHAR(20) NOT NULL DEFAULT 'draft',
	is_favorite   BOOLEAN NOT NULL DEFAULT FALSE,
	view_count    BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	published_at  TIMESTAMPTZ,
	CONSTRAINT videos_slug_key UNIQUE (slug)
);

CREATE INDEX IF NOT EXISTS idx_videos_category_id ON videos (category_id);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status);
CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos (created_at DESC);
`

// EnsureSchema applies Schema. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
