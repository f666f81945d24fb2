package users

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/auth"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testUserID = "0c8a54b4-1111-4b1a-9c1a-000000000001"

func newMockConf(t *testing.T) (*Conf, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c, err := NewConf(db)
	require.NoError(t, err)
	return c, mock
}

func userRow(hash string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "created_at", "updated_at"}).
		AddRow(testUserID, "ada@example.com", hash, "Ada", "Lovelace", "", auth.RoleUser, now, now)
}

// bcryptOf matches a bcrypt hash of password.
type bcryptOf string

func (b bcryptOf) Match(v driver.Value) bool {
	hash, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(b)) == nil
}

func TestInsertUser_HashesPassword(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("ada@example.com", bcryptOf("correct horse"), "Ada", "Lovelace", "", auth.RoleUser).
		WillReturnRows(userRow("$2a$10$placeholder"))

	u, err := c.InsertUser(context.Background(), NewUser{
		Email: "Ada@Example.com", Password: "correct horse", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, testUserID, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUser_DuplicateEmail(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := c.InsertUser(context.Background(), NewUser{Email: "ada@example.com", Password: "correct horse", FirstName: "Ada"})
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "email already exists", apperr.Message(err))
}

func TestAuthenticate(t *testing.T) {
	c, mock := newMockConf(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("ada@example.com").
		WillReturnRows(userRow(string(hash)))
	u, err := c.Authenticate(context.Background(), Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, testUserID, u.ID)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WillReturnRows(userRow(string(hash)))
	_, err = c.Authenticate(context.Background(), Credentials{Email: "ada@example.com", Password: "battery staple"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = c.Authenticate(context.Background(), Credentials{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_PartialFields(t *testing.T) {
	c, mock := newMockConf(t)
	phone := "+14155550100"

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(testUserID).
		WillReturnRows(userRow("hash"))
	mock.ExpectQuery(`UPDATE users`).
		WithArgs("ada@example.com", "hash", "Ada", "Lovelace", phone, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	u, err := c.UpdateUser(context.Background(), testUserID, UpdateUser{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, u.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_NotFound(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectExec(`DELETE FROM users`).WithArgs(testUserID).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, apperr.IsNotFound(c.DeleteUser(context.Background(), testUserID)))
}
