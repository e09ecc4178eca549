package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eastviewpta.org/internal/pta"
)

func normalizeUser(u pta.User) pta.User {
	u.Students = nonNil(u.Students)
	u.VolunteerInterests = nonNil(u.VolunteerInterests)
	return u
}

func (s *Store) CreateUser(ctx context.Context, u pta.User) (pta.User, error) {
	u = normalizeUser(u)
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return pta.User{}, mapError("user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (pta.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (pta.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (pta.User, error) {
	var u pta.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return pta.User{}, mapError("user", err)
	}
	return u, nil
}

func (s *Store) ListUsersByStatus(ctx context.Context, status pta.UserStatus) ([]pta.User, error) {
	cur, err := s.users.Find(ctx, bson.M{"status": status},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := make([]pta.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, u pta.User) (pta.User, error) {
	u = normalizeUser(u)
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return pta.User{}, mapError("user", err)
	}
	if res.MatchedCount == 0 {
		return pta.User{}, notFound("user")
	}
	return u, nil
}
