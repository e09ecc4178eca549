package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eastviewpta.org/internal/pta"
)

func normalizePost(p pta.BlogPost) pta.BlogPost {
	p.Tags = nonNil(p.Tags)
	p.Categories = nonNil(p.Categories)
	p.Comments = nonNil(p.Comments)
	p.Likes = nonNil(p.Likes)
	return p
}

func (s *Store) CreatePost(ctx context.Context, p pta.BlogPost) (pta.BlogPost, error) {
	p = normalizePost(p)
	if _, err := s.posts.InsertOne(ctx, p); err != nil {
		return pta.BlogPost{}, mapError("post", err)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (pta.BlogPost, error) {
	return s.findPost(ctx, bson.M{"_id": id})
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (pta.BlogPost, error) {
	return s.findPost(ctx, bson.M{"slug": slug})
}

func (s *Store) findPost(ctx context.Context, filter bson.M) (pta.BlogPost, error) {
	var p pta.BlogPost
	if err := s.posts.FindOne(ctx, filter).Decode(&p); err != nil {
		return pta.BlogPost{}, mapError("post", err)
	}
	return p, nil
}

// ListPosts orders pinned posts first, then by publish time falling back to
// creation time, newest first.
func (s *Store) ListPosts(ctx context.Context, f pta.PostFilter) ([]pta.BlogPost, int, error) {
	match := bson.M{}
	if f.Status != "" {
		match["status"] = f.Status
	}
	total, err := s.posts.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{"sort_at": bson.M{"$ifNull": bson.A{"$published_at", "$created_at"}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "pinned", Value: -1}, {Key: "sort_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if f.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(f.Offset)}})
	}
	if f.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(f.Limit)}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"sort_at": 0}}})

	cur, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	out := make([]pta.BlogPost, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// UpdatePost rewrites the post's own fields. published_at is only written
// while it is still unset, so the first publish time sticks.
func (s *Store) UpdatePost(ctx context.Context, p pta.BlogPost) (pta.BlogPost, error) {
	p = normalizePost(p)
	set, err := setFields(p, "published_at", "comments", "likes")
	if err != nil {
		return pta.BlogPost{}, err
	}
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set})
	if err != nil {
		return pta.BlogPost{}, mapError("post", err)
	}
	if res.MatchedCount == 0 {
		return pta.BlogPost{}, notFound("post")
	}
	if p.PublishedAt != nil {
		_, err := s.posts.UpdateOne(ctx,
			bson.M{"_id": p.ID, "published_at": nil},
			bson.M{"$set": bson.M{"published_at": *p.PublishedAt}})
		if err != nil {
			return pta.BlogPost{}, err
		}
	}
	return s.GetPost(ctx, p.ID)
}

func (s *Store) AddComment(ctx context.Context, postID string, c pta.Comment) (pta.BlogPost, error) {
	return s.modifyPost(ctx, bson.M{"_id": postID}, bson.M{"$push": bson.M{"comments": c}})
}

func (s *Store) SetCommentStatus(ctx context.Context, postID, commentID string, status pta.CommentStatus) (pta.BlogPost, error) {
	p, err := s.modifyPost(ctx,
		bson.M{"_id": postID, "comments.id": commentID},
		bson.M{"$set": bson.M{"comments.$.status": status}})
	if !errors.Is(err, pta.ErrNotFound) {
		return p, err
	}
	if _, err := s.GetPost(ctx, postID); err != nil {
		return pta.BlogPost{}, err
	}
	return pta.BlogPost{}, notFound("comment")
}

func (s *Store) AddLike(ctx context.Context, postID, userID string) (pta.BlogPost, error) {
	return s.modifyPost(ctx, bson.M{"_id": postID}, bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (s *Store) modifyPost(ctx context.Context, filter, update bson.M) (pta.BlogPost, error) {
	var p pta.BlogPost
	if err := s.posts.FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&p); err != nil {
		return pta.BlogPost{}, mapError("post", err)
	}
	return p, nil
}
