package services

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"srcapp/internal/config"
	"srcapp/internal/models"
	contextutils "srcapp/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userColumns = []string{"id", "username", "first_name", "last_name", "email", "role", "password_hash", "created_at", "updated_at"}

func newMockUserService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserServiceWithLogger(db, &config.Config{}, createTestLogger()), mock
}

func userRow(rows *sqlmock.Rows, id int, username, first, last, email string, role models.Role, hash string) *sqlmock.Rows {
	var emailVal, hashVal interface{}
	if email != "" {
		emailVal = email
	}
	if hash != "" {
		hashVal = hash
	}
	return rows.AddRow(id, username, first, last, emailVal, string(role), hashVal, fixedNow, fixedNow)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

var selectUserByID = regexp.QuoteMeta("FROM users WHERE id = $1")

func TestUserService_NewUserServiceWithLogger(t *testing.T) {
	service := NewUserServiceWithLogger(nil, &config.Config{}, createTestLogger())
	assert.NotNil(t, service)
}

func TestParseAssigneeName(t *testing.T) {
	tests := []struct {
		ref      string
		wantName string
		wantHint string
	}{
		{"John Smith(member)", "John Smith", "member"},
		{"  John Smith (admin) ", "John Smith", "admin"},
		{"John Smith", "John Smith", ""},
		{"jsmith", "jsmith", ""},
		{"Odd (Name) Person", "Odd (Name) Person", ""},
		{"()", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			name, hint := parseAssigneeName(tt.ref)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantHint, hint)
		})
	}
}

func TestUserService_ResolveAssignee_ByID(t *testing.T) {
	svc, mock := newMockUserService(t)

	mock.ExpectQuery(selectUserByID).WithArgs(3).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jsmith", "John", "Smith", "john@school.test", models.RoleMember, ""))

	user, err := svc.ResolveAssignee(context.Background(), " 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_ResolveAssignee_ByIDWrongRole(t *testing.T) {
	svc, mock := newMockUserService(t)

	mock.ExpectQuery(selectUserByID).WithArgs(4).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 4, "jane", "Jane", "Doe", "", models.RoleStudent, ""))
	_, err := svc.ResolveAssignee(context.Background(), "4")
	assert.Equal(t, contextutils.ErrorCodeUserResolution, contextutils.GetErrorCode(err))

	mock.ExpectQuery(selectUserByID).WithArgs(99).WillReturnError(sql.ErrNoRows)
	_, err = svc.ResolveAssignee(context.Background(), "99")
	assert.Equal(t, contextutils.ErrorCodeUserResolution, contextutils.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_ResolveAssignee_ByName(t *testing.T) {
	svc, mock := newMockUserService(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND role = ANY($2)")).
		WithArgs("John Smith", sqlmock.AnyArg()).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jsmith", "John", "Smith", "", models.RoleMember, ""))

	user, err := svc.ResolveAssignee(context.Background(), "John Smith(member)")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_ResolveAssignee_Failures(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()

	// ambiguous
	rows := sqlmock.NewRows(userColumns)
	userRow(rows, 3, "jsmith", "John", "Smith", "", models.RoleMember, "")
	userRow(rows, 6, "jsmith2", "John", "Smith", "", models.RoleAdmin, "")
	mock.ExpectQuery("FROM users").WithArgs("John Smith", sqlmock.AnyArg()).WillReturnRows(rows)
	_, err := svc.ResolveAssignee(ctx, "John Smith")
	assert.Equal(t, contextutils.ErrorCodeUserResolution, contextutils.GetErrorCode(err))

	// no match
	mock.ExpectQuery("FROM users").WithArgs("Nobody", sqlmock.AnyArg()).WillReturnRows(sqlmock.NewRows(userColumns))
	_, err = svc.ResolveAssignee(ctx, "Nobody")
	assert.Equal(t, contextutils.ErrorCodeUserResolution, contextutils.GetErrorCode(err))

	// rejected before touching the database
	for _, ref := range []string{"", "Jane Doe(student)", "Jane Doe(president)"} {
		_, err = svc.ResolveAssignee(ctx, ref)
		assert.Equal(t, contextutils.ErrorCodeUserResolution, contextutils.GetErrorCode(err), ref)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_AuthenticateUser(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()
	hash := mustHash(t, "correct horse")
	byUsername := regexp.QuoteMeta("WHERE LOWER(username) = LOWER($1)")

	mock.ExpectQuery(byUsername).WithArgs("amina").
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 2, "amina", "Amina", "Okafor", "", models.RoleAdmin, hash))
	user, err := svc.AuthenticateUser(ctx, "amina", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, 2, user.ID)

	mock.ExpectQuery(byUsername).WithArgs("amina").
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 2, "amina", "Amina", "Okafor", "", models.RoleAdmin, hash))
	_, err = svc.AuthenticateUser(ctx, "amina", "wrong")
	assert.Equal(t, contextutils.ErrorCodeInvalidCredentials, contextutils.GetErrorCode(err))

	mock.ExpectQuery(byUsername).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = svc.AuthenticateUser(ctx, "ghost", "anything")
	assert.Equal(t, contextutils.ErrorCodeInvalidCredentials, contextutils.GetErrorCode(err))

	mock.ExpectQuery(byUsername).WithArgs("nohash").
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 7, "nohash", "", "", "", models.RoleStudent, ""))
	_, err = svc.AuthenticateUser(ctx, "nohash", "")
	assert.Equal(t, contextutils.ErrorCodeInvalidCredentials, contextutils.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_CreateUser(t *testing.T) {
	svc, mock := newMockUserService(t)
	admin := models.NewActor(2, "amina", models.RoleAdmin)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("tunde", "Tunde", "Bello", "tunde@school.test", "member", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 8, "tunde", "Tunde", "Bello", "tunde@school.test", models.RoleMember, "hash"))

	user, err := svc.CreateUser(context.Background(), admin, CreateUserInput{
		Username:  " tunde ",
		Password:  "s3cretpass",
		FirstName: "Tunde",
		LastName:  "Bello",
		Email:     "tunde@school.test",
		Role:      "Member",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, user.ID)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_CreateUser_Rejections(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()
	admin := models.NewActor(2, "amina", models.RoleAdmin)
	member := models.NewActor(3, "jsmith", models.RoleMember)
	valid := CreateUserInput{Username: "tunde", Password: "s3cretpass", Role: models.RoleStudent}

	_, err := svc.CreateUser(ctx, member, valid)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	promoted := valid
	promoted.Role = models.RoleAdmin
	_, err = svc.CreateUser(ctx, admin, promoted)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))
	assert.Equal(t, "only a super admin can manage Admin accounts", contextutils.UserMessage(err))

	short := valid
	short.Password = "short"
	_, err = svc.CreateUser(ctx, admin, short)
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))
	assert.Contains(t, contextutils.UserMessage(err), "password must be at least 8 characters")

	unknown := valid
	unknown.Role = "treasurer"
	_, err = svc.CreateUser(ctx, admin, unknown)
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
	_, err = svc.CreateUser(ctx, admin, valid)
	assert.Equal(t, contextutils.ErrorCodeRecordExists, contextutils.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_UpdateUserRole(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()
	root := models.NewActor(1, "root", models.RoleSuperAdmin)
	admin := models.NewActor(2, "amina", models.RoleAdmin)

	_, err := svc.UpdateUserRole(ctx, admin, 2, models.RoleMember)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	_, err = svc.UpdateUserRole(ctx, admin, 5, "captain")
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))

	// an admin cannot demote another admin
	mock.ExpectQuery(selectUserByID).WithArgs(6).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 6, "jsmith2", "John", "Smith", "", models.RoleAdmin, ""))
	_, err = svc.UpdateUserRole(ctx, admin, 6, models.RoleMember)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	// an admin cannot promote to admin
	mock.ExpectQuery(selectUserByID).WithArgs(5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleStudent, ""))
	_, err = svc.UpdateUserRole(ctx, admin, 5, models.RoleAdmin)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	// an admin may move a student to member
	mock.ExpectQuery(selectUserByID).WithArgs(5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleStudent, ""))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1")).WithArgs("member", sqlmock.AnyArg(), 5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleMember, ""))
	mock.ExpectCommit()
	updated, err := svc.UpdateUserRole(ctx, admin, 5, models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, updated.Role)

	// a super admin may promote to admin
	mock.ExpectQuery(selectUserByID).WithArgs(5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleMember, ""))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1")).WithArgs("admin", sqlmock.AnyArg(), 5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleAdmin, ""))
	mock.ExpectCommit()
	updated, err = svc.UpdateUserRole(ctx, root, 5, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	mock.ExpectQuery(selectUserByID).WithArgs(404).WillReturnError(sql.ErrNoRows)
	_, err = svc.UpdateUserRole(ctx, root, 404, models.RoleMember)
	assert.Equal(t, contextutils.ErrorCodeRecordNotFound, contextutils.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_DeleteUser(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()
	admin := models.NewActor(2, "amina", models.RoleAdmin)

	err := svc.DeleteUser(ctx, admin, 2)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))
	assert.Equal(t, "you cannot delete your own account", contextutils.UserMessage(err))

	mock.ExpectQuery(selectUserByID).WithArgs(1).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 1, "root", "Ada", "Root", "", models.RoleSuperAdmin, ""))
	err = svc.DeleteUser(ctx, admin, 1)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	mock.ExpectQuery(selectUserByID).WithArgs(5).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 5, "bola", "Bola", "Ige", "", models.RoleStudent, ""))
	mock.ExpectBegin()
	mock.ExpectExec(releaseAssignmentsSQL).WithArgs(5, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(detachSubmissionsSQL).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, svc.DeleteUser(ctx, admin, 5))

	mock.ExpectQuery(selectUserByID).WithArgs(404).WillReturnError(sql.ErrNoRows)
	err = svc.DeleteUser(ctx, admin, 404)
	assert.Equal(t, contextutils.ErrorCodeRecordNotFound, contextutils.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

var (
	releaseAssignmentsSQL = regexp.QuoteMeta("SET assignee_id = NULL")
	detachSubmissionsSQL  = regexp.QuoteMeta("SET submitter_kind = 'direct', submitter_user_id = NULL")
)

func TestUserService_UpdateUserRole_ReleasesAssignments(t *testing.T) {
	ctx := context.Background()
	root := models.NewActor(1, "root", models.RoleSuperAdmin)

	for _, role := range []models.Role{models.RoleStudent, models.RoleSuperAdmin} {
		t.Run(string(role), func(t *testing.T) {
			svc, mock := newMockUserService(t)
			mock.ExpectQuery(selectUserByID).WithArgs(3).
				WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "", models.RoleMember, ""))
			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1")).WithArgs(string(role), sqlmock.AnyArg(), 3).
				WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "", role, ""))
			mock.ExpectExec(releaseAssignmentsSQL).WithArgs(3, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectCommit()

			updated, err := svc.UpdateUserRole(ctx, root, 3, role)

			require.NoError(t, err)
			assert.Equal(t, role, updated.Role)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserService_UpdateUserRole_ReleaseFailureRollsBack(t *testing.T) {
	svc, mock := newMockUserService(t)
	root := models.NewActor(1, "root", models.RoleSuperAdmin)

	mock.ExpectQuery(selectUserByID).WithArgs(3).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "", models.RoleAdmin, ""))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1")).WithArgs("student", sqlmock.AnyArg(), 3).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "", models.RoleStudent, ""))
	mock.ExpectExec(releaseAssignmentsSQL).WithArgs(3, sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.UpdateUserRole(context.Background(), root, 3, models.RoleStudent)

	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_DeleteUser_ReleasesAndDetaches(t *testing.T) {
	svc, mock := newMockUserService(t)
	root := models.NewActor(1, "root", models.RoleSuperAdmin)

	mock.ExpectQuery(selectUserByID).WithArgs(3).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "jo@example.com", models.RoleMember, ""))
	mock.ExpectBegin()
	mock.ExpectExec(releaseAssignmentsSQL).WithArgs(3, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(detachSubmissionsSQL).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.DeleteUser(context.Background(), root, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_DeleteUser_FailureRollsBack(t *testing.T) {
	svc, mock := newMockUserService(t)
	root := models.NewActor(1, "root", models.RoleSuperAdmin)

	mock.ExpectQuery(selectUserByID).WithArgs(3).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), 3, "jo", "Jo", "Bloggs", "", models.RoleMember, ""))
	mock.ExpectBegin()
	mock.ExpectExec(releaseAssignmentsSQL).WithArgs(3, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(detachSubmissionsSQL).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs(3).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := svc.DeleteUser(context.Background(), root, 3)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_UpdateUserPassword(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()

	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(svc.UpdateUserPassword(ctx, 5, "")))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.UpdateUserPassword(ctx, 5, "n3wpassword"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 404).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, contextutils.ErrorCodeRecordNotFound, contextutils.GetErrorCode(svc.UpdateUserPassword(ctx, 404, "n3wpassword")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_ListUsersByRoles(t *testing.T) {
	svc, mock := newMockUserService(t)
	ctx := context.Background()

	none, err := svc.ListUsersByRoles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	rows := sqlmock.NewRows(userColumns)
	userRow(rows, 2, "amina", "Amina", "Okafor", "amina@school.test", models.RoleAdmin, "")
	userRow(rows, 3, "jsmith", "John", "Smith", "", models.RoleMember, "")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = ANY($1)")).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)

	users, err := svc.ListAssignableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "amina@school.test", users[0].EmailAddress())
	assert.Equal(t, "", users[1].EmailAddress())
	assert.Equal(t, "John Smith(member)", users[1].DisplayName())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_EnsureSuperAdminExists(t *testing.T) {
	ctx := context.Background()
	byUsername := regexp.QuoteMeta("WHERE LOWER(username) = LOWER($1)")

	t.Run("rejects empty credentials", func(t *testing.T) {
		svc, _ := newMockUserService(t)
		assert.Error(t, svc.EnsureSuperAdminExists(ctx, "", "pw", ""))
		assert.Error(t, svc.EnsureSuperAdminExists(ctx, "root", "", ""))
	})

	t.Run("creates missing account", func(t *testing.T) {
		svc, mock := newMockUserService(t)
		mock.ExpectQuery(byUsername).WithArgs("root").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("root", "Council", "Administrator", "root@school.test", "super_admin", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(userRow(sqlmock.NewRows(userColumns), 1, "root", "Council", "Administrator", "root@school.test", models.RoleSuperAdmin, "hash"))

		require.NoError(t, svc.EnsureSuperAdminExists(ctx, "root", "bootstrap-pass", "root@school.test"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves matching account alone", func(t *testing.T) {
		svc, mock := newMockUserService(t)
		mock.ExpectQuery(byUsername).WithArgs("root").
			WillReturnRows(userRow(sqlmock.NewRows(userColumns), 1, "root", "Ada", "Root", "root@school.test", models.RoleSuperAdmin, mustHash(t, "bootstrap-pass")))

		require.NoError(t, svc.EnsureSuperAdminExists(ctx, "root", "bootstrap-pass", "root@school.test"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repairs password role and email", func(t *testing.T) {
		svc, mock := newMockUserService(t)
		mock.ExpectQuery(byUsername).WithArgs("root").
			WillReturnRows(userRow(sqlmock.NewRows(userColumns), 1, "root", "Ada", "Root", "", models.RoleMember, mustHash(t, "old-pass")))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $1")).WithArgs("super_admin", sqlmock.AnyArg(), 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = $1")).WithArgs("root@school.test", sqlmock.AnyArg(), 1).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.EnsureSuperAdminExists(ctx, "root", "bootstrap-pass", "root@school.test"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, isDuplicateKeyError(&pq.Error{Code: "23505"}))
	assert.False(t, isDuplicateKeyError(&pq.Error{Code: "23503"}))
	assert.False(t, isDuplicateKeyError(sql.ErrNoRows))
}
