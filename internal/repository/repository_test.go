package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateUserError(t *testing.T) {
	email := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.uq_users_email'"}
	user := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'emailfan' for key 'users.uq_users_username'"}
	other := &mysql.MySQLError{Number: 1146, Message: "Table 'x.users' doesn't exist"}

	assert.ErrorIs(t, duplicateUserError(email), ErrEmailExists)
	assert.ErrorIs(t, duplicateUserError(user), ErrUsernameExists)
	assert.ErrorIs(t, duplicateUserError(user), ErrConflict)
	assert.Same(t, other, duplicateUserError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, duplicateUserError(plain))
}

func TestNewPageClamps(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Page: 3, Limit: MaxPageSize}, NewPage(3, 500))
	assert.Equal(t, Page{Page: 1, Limit: DefaultPageSize}, ParsePage("abc", "-2"))
	assert.Equal(t, 20, NewPage(3, 10).Offset())
}

func TestPageDescribe(t *testing.T) {
	d := NewPage(2, 10).Describe(25)
	assert.Equal(t, 3, d.TotalPages)
	assert.True(t, d.HasNextPage)
	assert.True(t, d.HasPrevPage)

	d = NewPage(1, 10).Describe(0)
	assert.Equal(t, 0, d.TotalPages)
	assert.False(t, d.HasNextPage)
	assert.False(t, d.HasPrevPage)
}
