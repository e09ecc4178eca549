package pg

import (
	"context"
	"database/sql"
	"slices"

	"eastviewpta.org/internal/pta"
)

const postColumns = `id, title, slug, content, content_html, excerpt, author_id, status,
	featured_image, tags, categories, comments, likes, seo_title, seo_description,
	featured, pinned, published_at, created_at, updated_at`

func scanPost(row scanner) (pta.BlogPost, error) {
	var (
		p                                 pta.BlogPost
		status                            string
		tags, categories, comments, likes []byte
		published                         sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.ContentHTML, &p.Excerpt, &p.AuthorID,
		&status, &p.FeaturedImage, &tags, &categories, &comments, &likes, &p.SEOTitle,
		&p.SEODescription, &p.Featured, &p.Pinned, &published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return pta.BlogPost{}, err
	}
	p.Status = pta.PostStatus(status)
	for _, col := range []struct {
		raw []byte
		dst any
	}{{tags, &p.Tags}, {categories, &p.Categories}, {comments, &p.Comments}, {likes, &p.Likes}} {
		if err := unmarshalJSON(col.raw, col.dst); err != nil {
			return pta.BlogPost{}, err
		}
	}
	p.PublishedAt = timePtr(published)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

type postDocs struct {
	tags, categories, comments, likes []byte
}

func encodePost(p pta.BlogPost) (postDocs, error) {
	var (
		d   postDocs
		err error
	)
	if d.tags, err = marshalJSON(nonNil(p.Tags)); err != nil {
		return d, err
	}
	if d.categories, err = marshalJSON(nonNil(p.Categories)); err != nil {
		return d, err
	}
	if d.comments, err = marshalJSON(nonNil(p.Comments)); err != nil {
		return d, err
	}
	if d.likes, err = marshalJSON(nonNil(p.Likes)); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Store) CreatePost(ctx context.Context, p pta.BlogPost) (pta.BlogPost, error) {
	d, err := encodePost(p)
	if err != nil {
		return pta.BlogPost{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into posts (id, title, slug, content, content_html, excerpt, author_id, status,
			featured_image, tags, categories, comments, likes, seo_title, seo_description,
			featured, pinned, published_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		returning `+postColumns,
		p.ID, p.Title, p.Slug, p.Content, p.ContentHTML, p.Excerpt, p.AuthorID, string(p.Status),
		p.FeaturedImage, d.tags, d.categories, d.comments, d.likes, p.SEOTitle, p.SEODescription,
		p.Featured, p.Pinned, nullTime(p.PublishedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	out, err := scanPost(row)
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return out, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (pta.BlogPost, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `select `+postColumns+` from posts where id = $1`, id))
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return p, nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (pta.BlogPost, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `select `+postColumns+` from posts where slug = $1`, slug))
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return p, nil
}

// ListPosts orders pinned posts first, then by publish time (creation time
// for unpublished posts), newest first.
func (s *Store) ListPosts(ctx context.Context, f pta.PostFilter) ([]pta.BlogPost, int, error) {
	status := string(f.Status)
	var total int
	if err := s.db.QueryRowContext(ctx, `
		select count(*) from posts where ($1 = '' or status = $1)
	`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := sql.NullInt64{}
	if f.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(f.Limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+postColumns+`
		from posts
		where ($1 = '' or status = $1)
		order by pinned desc, coalesce(published_at, created_at) desc, id desc
		offset $2 limit $3
	`, status, max(f.Offset, 0), limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]pta.BlogPost, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdatePost never overwrites a published_at that is already set.
func (s *Store) UpdatePost(ctx context.Context, p pta.BlogPost) (pta.BlogPost, error) {
	d, err := encodePost(p)
	if err != nil {
		return pta.BlogPost{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		update posts set
			title = $2, slug = $3, content = $4, content_html = $5, excerpt = $6,
			status = $7, featured_image = $8, tags = $9, categories = $10,
			seo_title = $11, seo_description = $12, featured = $13, pinned = $14,
			published_at = coalesce(published_at, $15), updated_at = $16
		where id = $1
		returning `+postColumns,
		p.ID, p.Title, p.Slug, p.Content, p.ContentHTML, p.Excerpt,
		string(p.Status), p.FeaturedImage, d.tags, d.categories,
		p.SEOTitle, p.SEODescription, p.Featured, p.Pinned,
		nullTime(p.PublishedAt), p.UpdatedAt.UTC())
	out, err := scanPost(row)
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return out, nil
}

func (s *Store) AddComment(ctx context.Context, postID string, c pta.Comment) (pta.BlogPost, error) {
	doc, err := marshalJSON([]pta.Comment{c})
	if err != nil {
		return pta.BlogPost{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		update posts set comments = comments || $2::jsonb
		where id = $1
		returning `+postColumns, postID, doc)
	out, err := scanPost(row)
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return out, nil
}

func (s *Store) SetCommentStatus(ctx context.Context, postID, commentID string, status pta.CommentStatus) (pta.BlogPost, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pta.BlogPost{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	if err := tx.QueryRowContext(ctx, `select comments from posts where id = $1 for update`, postID).Scan(&raw); err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	var comments []pta.Comment
	if err := unmarshalJSON(raw, &comments); err != nil {
		return pta.BlogPost{}, err
	}
	i := slices.IndexFunc(comments, func(c pta.Comment) bool { return c.ID == commentID })
	if i < 0 {
		return pta.BlogPost{}, mapError(sql.ErrNoRows, "comment")
	}
	comments[i].Status = status
	doc, err := marshalJSON(comments)
	if err != nil {
		return pta.BlogPost{}, err
	}
	out, err := scanPost(tx.QueryRowContext(ctx, `
		update posts set comments = $2
		where id = $1
		returning `+postColumns, postID, doc))
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	if err := tx.Commit(); err != nil {
		return pta.BlogPost{}, err
	}
	return out, nil
}

func (s *Store) AddLike(ctx context.Context, postID, userID string) (pta.BlogPost, error) {
	row := s.db.QueryRowContext(ctx, `
		update posts set likes = case
			when likes @> jsonb_build_array($2::text) then likes
			else likes || jsonb_build_array($2::text)
		end
		where id = $1
		returning `+postColumns, postID, userID)
	out, err := scanPost(row)
	if err != nil {
		return pta.BlogPost{}, mapError(err, "post")
	}
	return out, nil
}
