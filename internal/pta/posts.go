package pta

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"eastviewpta.org/internal/ids"
)

const (
	defaultPageSize   = 10
	maxPageSize       = 50
	maxCommentLen     = 1000
	slugAttempts      = 5
	defaultPostSlug   = "post"
	postEntity        = "post"
	commentEntity     = "comment"
	transitionLike    = Transition("like")
	transitionComment = Transition("comment")
)

// PostInput is the author-supplied part of a post.
type PostInput struct {
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Excerpt        string         `json:"excerpt"`
	FeaturedImage  string         `json:"featured_image"`
	Tags           []string       `json:"tags"`
	Categories     []PostCategory `json:"categories"`
	SEOTitle       string         `json:"seo_title"`
	SEODescription string         `json:"seo_description"`
	Draft          bool           `json:"draft"`
}

// PostPage is one page of published posts.
type PostPage struct {
	Posts []BlogPost `json:"posts"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Pages int        `json:"pages"`
	Limit int        `json:"limit"`
}

func (in *PostInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	switch {
	case in.Title == "":
		return invalid("title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLen:
		return invalid("title must be at most %d characters", maxTitleLen)
	case strings.TrimSpace(in.Content) == "":
		return invalid("content is required")
	case utf8.RuneCountInString(in.Excerpt) > maxExcerptLen:
		return invalid("excerpt must be at most %d characters", maxExcerptLen)
	case utf8.RuneCountInString(in.SEOTitle) > maxSEOTitleLen:
		return invalid("seo title must be at most %d characters", maxSEOTitleLen)
	case utf8.RuneCountInString(in.SEODescription) > maxSEODescriptionLen:
		return invalid("seo description must be at most %d characters", maxSEODescriptionLen)
	}
	for _, c := range in.Categories {
		if !c.Valid() {
			return invalid("unknown post category %q", c)
		}
	}
	return nil
}

// SubmitPost creates a post. Admin authors publish directly, everybody else
// lands in the moderation queue; Draft keeps the post private to its author.
func (s *Service) SubmitPost(ctx context.Context, actor Actor, in PostInput) (BlogPost, error) {
	if err := in.validate(); err != nil {
		return BlogPost{}, err
	}
	t := SubmitTransition(actor.Role)
	if in.Draft {
		t = TransitionDraft
	}
	status, err := PostWorkflow.Next(t, "")
	if err != nil {
		return BlogPost{}, err
	}
	rendered, err := RenderContent(in.Content)
	if err != nil {
		return BlogPost{}, invalid("content could not be rendered")
	}
	excerpt := in.Excerpt
	if excerpt == "" {
		excerpt = Excerpt(rendered)
	}

	now := s.clock()
	p := BlogPost{
		ID:             ids.NewAt(now),
		Title:          in.Title,
		Content:        in.Content,
		ContentHTML:    rendered,
		Excerpt:        excerpt,
		AuthorID:       actor.ID,
		Status:         status,
		FeaturedImage:  strings.TrimSpace(in.FeaturedImage),
		Tags:           NormalizeTags(in.Tags),
		Categories:     in.Categories,
		Comments:       []Comment{},
		Likes:          []string{},
		SEOTitle:       strings.TrimSpace(in.SEOTitle),
		SEODescription: strings.TrimSpace(in.SEODescription),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == PostPublished {
		p.PublishedAt = &now
	}

	base := Slugify(in.Title)
	if base == "" {
		base = defaultPostSlug
	}
	p.Slug = base
	var created BlogPost
	for attempt := 0; ; attempt++ {
		created, err = s.store.CreatePost(ctx, p)
		if !errors.Is(err, ErrConflict) || attempt+1 >= slugAttempts {
			break
		}
		p.Slug = base + "-" + ids.Short()
	}
	if errors.Is(err, ErrConflict) {
		return BlogPost{}, invalid("could not find a free slug for %q", in.Title)
	}
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, p.ID, t, err)
	}
	s.notify(ctx, Change{
		Entity:     postEntity,
		EntityID:   created.ID,
		Transition: t,
		To:         string(created.Status),
		ActorID:    actor.ID,
		SubjectID:  created.AuthorID,
	})
	return created, nil
}

// SubmitDraft moves the author's draft forward the same way SubmitPost would
// have on creation.
func (s *Service) SubmitDraft(ctx context.Context, actor Actor, id string) (BlogPost, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, id, TransitionSubmit, err)
	}
	if p.AuthorID != actor.ID && actor.Role != RoleAdmin {
		return BlogPost{}, ErrForbidden
	}
	return s.movePost(ctx, actor, p, SubmitTransition(actor.Role))
}

func (s *Service) ApprovePost(ctx context.Context, actor Actor, id string) (BlogPost, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, id, TransitionApprove, err)
	}
	return s.movePost(ctx, actor, p, TransitionApprove)
}

func (s *Service) ArchivePost(ctx context.Context, actor Actor, id string) (BlogPost, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, id, TransitionArchive, err)
	}
	return s.movePost(ctx, actor, p, TransitionArchive)
}

func (s *Service) movePost(ctx context.Context, actor Actor, p BlogPost, t Transition) (BlogPost, error) {
	from := p.Status
	next, err := PostWorkflow.Next(t, from)
	if err != nil {
		return BlogPost{}, err
	}
	now := s.clock()
	p.Status = next
	p.UpdatedAt = now
	if next == PostPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	updated, err := s.store.UpdatePost(ctx, p)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, p.ID, t, err)
	}
	s.notify(ctx, Change{
		Entity:     postEntity,
		EntityID:   p.ID,
		Transition: t,
		From:       string(from),
		To:         string(next),
		ActorID:    actor.ID,
		SubjectID:  p.AuthorID,
	})
	return updated, nil
}

// PublishedPosts pages through published posts, pinned first and then newest.
// Page starts at 1; limit defaults to 10 and is capped at 50.
func (s *Service) PublishedPosts(ctx context.Context, page, limit int) (PostPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	posts, total, err := s.store.ListPosts(ctx, PostFilter{
		Status: PostPublished,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return PostPage{}, err
	}
	for i := range posts {
		posts[i].Comments = posts[i].PublicComments("")
	}
	return PostPage{
		Posts: posts,
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
		Limit: limit,
	}, nil
}

func (s *Service) PendingPosts(ctx context.Context) ([]BlogPost, error) {
	posts, _, err := s.store.ListPosts(ctx, PostFilter{Status: PostPending})
	return posts, err
}

// GetPost resolves ref as an id first and a slug second. Unpublished posts
// are only visible to their author and to admins; everybody else gets
// NotFound.
func (s *Service) GetPost(ctx context.Context, ref string, viewer Actor) (BlogPost, error) {
	p, err := s.findPost(ctx, ref)
	if err != nil {
		return BlogPost{}, err
	}
	admin := viewer.Role == RoleAdmin
	if p.Status != PostPublished && !admin && (viewer.ID == "" || viewer.ID != p.AuthorID) {
		return BlogPost{}, notFound(postEntity)
	}
	if !admin {
		p.Comments = p.PublicComments(viewer.ID)
	}
	return p, nil
}

func (s *Service) findPost(ctx context.Context, ref string) (BlogPost, error) {
	ref = strings.TrimSpace(ref)
	if ids.Valid(ref) {
		p, err := s.store.GetPost(ctx, strings.ToUpper(ref))
		if !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}
	return s.store.GetPostBySlug(ctx, strings.ToLower(ref))
}

// AddComment queues a comment for moderation on a published post.
func (s *Service) AddComment(ctx context.Context, actor Actor, postID, content string) (BlogPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return BlogPost{}, invalid("comment content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return BlogPost{}, invalid("comment must be at most %d characters", maxCommentLen)
	}
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, postID, transitionComment, err)
	}
	if p.Status != PostPublished {
		return BlogPost{}, invalid("comments are only accepted on published posts")
	}
	status, err := CommentWorkflow.Next(TransitionSubmit, "")
	if err != nil {
		return BlogPost{}, err
	}
	c := Comment{
		ID:        ids.New(),
		AuthorID:  actor.ID,
		Content:   content,
		Status:    status,
		CreatedAt: s.clock(),
	}
	updated, err := s.store.AddComment(ctx, postID, c)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, postID, transitionComment, err)
	}
	s.notify(ctx, Change{
		Entity:     commentEntity,
		EntityID:   c.ID,
		Transition: TransitionSubmit,
		To:         string(status),
		ActorID:    actor.ID,
		SubjectID:  postID,
	})
	updated.Comments = updated.PublicComments(actor.ID)
	return updated, nil
}

// ModerateComment applies approve or reject to one comment.
func (s *Service) ModerateComment(ctx context.Context, actor Actor, postID, commentID string, t Transition) (BlogPost, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return BlogPost{}, s.fail(ctx, commentEntity, commentID, t, err)
	}
	i := slices.IndexFunc(p.Comments, func(c Comment) bool { return c.ID == commentID })
	if i < 0 {
		return BlogPost{}, notFound(commentEntity)
	}
	from := p.Comments[i].Status
	next, err := CommentWorkflow.Next(t, from)
	if err != nil {
		return BlogPost{}, err
	}
	updated, err := s.store.SetCommentStatus(ctx, postID, commentID, next)
	if err != nil {
		return BlogPost{}, s.fail(ctx, commentEntity, commentID, t, err)
	}
	s.notify(ctx, Change{
		Entity:     commentEntity,
		EntityID:   commentID,
		Transition: t,
		From:       string(from),
		To:         string(next),
		ActorID:    actor.ID,
		SubjectID:  postID,
	})
	return updated, nil
}

// LikePost records the caller's like once; repeating it is a no-op.
func (s *Service) LikePost(ctx context.Context, actor Actor, postID string) (BlogPost, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, postID, transitionLike, err)
	}
	if p.Status != PostPublished {
		return BlogPost{}, invalid("only published posts can be liked")
	}
	updated, err := s.store.AddLike(ctx, postID, actor.ID)
	if err != nil {
		return BlogPost{}, s.fail(ctx, postEntity, postID, transitionLike, err)
	}
	updated.Comments = updated.PublicComments(actor.ID)
	return updated, nil
}
