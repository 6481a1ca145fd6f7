package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/content-platform/internal/model"
)

// UserRepo persists identities in the `users` table.  It also holds the
// refresh-token hash of each identity, so rotation and revocation are single
// row updates.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,full_name,avatar,cover_image,password_hash,role,is_disabled,COALESCE(refresh_token_hash,''),created_at,updated_at"

const mysqlDuplicateEntry = 1062

// Create inserts u.  Username and email are normalized, an id is assigned
// when empty and the role defaults to user.  A unique-key violation maps to
// ErrUsernameExists or ErrEmailExists depending on the violated key.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = model.NormalizeHandle(u.Username)
	u.Email = model.NormalizeHandle(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC().Truncate(time.Second)
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, role, is_disabled, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.FullName, u.Avatar, u.CoverImage, u.PasswordHash, string(u.Role), u.IsDisabled, now, now)
	if err != nil {
		return duplicateUserError(err)
	}
	return nil
}

func duplicateUserError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		if strings.Contains(me.Message, "uq_users_email") {
			return ErrEmailExists
		}
		return ErrUsernameExists
	}
	return err
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.PasswordHash, &role, &u.IsDisabled, &u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username=?", model.NormalizeHandle(username))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email=?", model.NormalizeHandle(email))
}

// GetByLogin resolves a login handle that may be either an email or a
// username.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if strings.Contains(login, "@") {
		return r.GetByEmail(ctx, login)
	}
	return r.GetByUsername(ctx, login)
}

// SetRefreshToken unconditionally stores hash as the only honoured refresh
// token.  An empty hash revokes the session.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULLIF(?,''), updated_at=UTC_TIMESTAMP() WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SwapRefreshToken replaces current with next only if current is still the
// stored value.  It reports false when another rotation got there first.
func (r *UserRepo) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=? AND refresh_token_hash=?",
		next, id, current)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateRole sets the role of id.
func (r *UserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=UTC_TIMESTAMP() WHERE id=?", string(role), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetDisabled sets the disabled flag of id.  Disabling also revokes the
// stored refresh token.
func (r *UserRepo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	q := "UPDATE users SET is_disabled=?, updated_at=UTC_TIMESTAMP() WHERE id=?"
	if disabled {
		q = "UPDATE users SET is_disabled=?, refresh_token_hash=NULL, updated_at=UTC_TIMESTAMP() WHERE id=?"
	}
	res, err := r.DB.ExecContext(ctx, q, disabled, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the user; tweets and reactions cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListAdminIDs returns the ids of every admin.
func (r *UserRepo) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id FROM users WHERE role=?", string(model.RoleAdmin))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns one page of users ordered by creation time, newest first.
func (r *UserRepo) List(ctx context.Context, p Page) ([]model.User, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id LIMIT ? OFFSET ?", p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.User, 0, p.Limit)
	for rows.Next() {
		var (
			u    model.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
			&u.PasswordHash, &role, &u.IsDisabled, &u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		u.Role = model.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
