package pg

import (
	"context"

	"eastviewpta.org/internal/pta"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, status,
	membership_type, students, emergency_contact, volunteer_interests, profile_image,
	created_at, updated_at`

func scanUser(row scanner) (pta.User, error) {
	var (
		u                            pta.User
		role, status, membership     string
		students, contact, interests []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&role, &status, &membership, &students, &contact, &interests, &u.ProfileImage,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return pta.User{}, err
	}
	u.Role = pta.Role(role)
	u.Status = pta.UserStatus(status)
	u.MembershipType = pta.MembershipType(membership)
	if err := unmarshalJSON(students, &u.Students); err != nil {
		return pta.User{}, err
	}
	if err := unmarshalJSON(contact, &u.EmergencyContact); err != nil {
		return pta.User{}, err
	}
	if err := unmarshalJSON(interests, &u.VolunteerInterests); err != nil {
		return pta.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

type userDocs struct {
	students, contact, interests []byte
}

func encodeUser(u pta.User) (userDocs, error) {
	var (
		d   userDocs
		err error
	)
	if d.students, err = marshalJSON(nonNil(u.Students)); err != nil {
		return d, err
	}
	if d.contact, err = marshalJSON(u.EmergencyContact); err != nil {
		return d, err
	}
	if d.interests, err = marshalJSON(nonNil(u.VolunteerInterests)); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Store) CreateUser(ctx context.Context, u pta.User) (pta.User, error) {
	d, err := encodeUser(u)
	if err != nil {
		return pta.User{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name, phone, role, status,
			membership_type, students, emergency_contact, volunteer_interests, profile_image,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		returning `+userColumns,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), string(u.Status),
		string(u.MembershipType), d.students, d.contact, d.interests, u.ProfileImage,
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	out, err := scanUser(row)
	if err != nil {
		return pta.User{}, mapError(err, "user")
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (pta.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return pta.User{}, mapError(err, "user")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (pta.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email))
	if err != nil {
		return pta.User{}, mapError(err, "user")
	}
	return u, nil
}

func (s *Store) ListUsersByStatus(ctx context.Context, status pta.UserStatus) ([]pta.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where status = $1
		order by created_at desc, id desc
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pta.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u pta.User) (pta.User, error) {
	d, err := encodeUser(u)
	if err != nil {
		return pta.User{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		update users set
			email = $2, password_hash = $3, first_name = $4, last_name = $5, phone = $6,
			role = $7, status = $8, membership_type = $9, students = $10,
			emergency_contact = $11, volunteer_interests = $12, profile_image = $13,
			updated_at = $14
		where id = $1
		returning `+userColumns,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
		string(u.Role), string(u.Status), string(u.MembershipType), d.students,
		d.contact, d.interests, u.ProfileImage, u.UpdatedAt.UTC())
	out, err := scanUser(row)
	if err != nil {
		return pta.User{}, mapError(err, "user")
	}
	return out, nil
}
