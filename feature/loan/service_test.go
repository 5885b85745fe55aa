package loan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"loankeeper/core/fault"
	"loankeeper/core/status"
	"loankeeper/feature/history"
	"loankeeper/feature/inventory"
	"loankeeper/feature/loan"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func newService(db *gorm.DB) *loan.Service {
	recorder := history.NewRecorder()
	reconciler := inventory.NewReconciler(recorder, zap.NewNop(), nil)
	return loan.NewService(db, recorder, reconciler, zap.NewNop())
}

var itemColumns = []string{
	"id", "serial", "name", "category", "service_category",
	"reservation_status", "available", "reserved_by", "reserved_at",
	"photo_object", "created_at", "updated_at",
}

var loanColumns = []string{
	"id", "item_id", "user_id", "borrowed_at", "due_at",
	"returned_at", "returned_by", "status", "note", "created_at", "updated_at",
}

var reservationColumns = []string{
	"id", "item_id", "user_id", "start_date", "end_date", "status", "created_at", "updated_at",
}

// Borrowing an available item creates an ACTIVE loan and flips the
// item to BORROWED in the same transaction.
func TestBorrowAvailableItem(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"AVAILABLE", true, nil, nil, "", now, now))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `loans`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `loans`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `loan_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `reservations`").
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectExec("UPDATE `items` SET").
		WithArgs(false, status.ItemBorrowed, nil, nil, sqlmock.AnyArg(), "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := svc.Borrow(context.Background(), loan.BorrowInput{
		ItemID: "i1",
		UserID: "u1",
		DueAt:  now.Add(7 * 24 * time.Hour),
	}, "admin")
	assert.NoError(t, err)
	assert.Equal(t, status.LoanActive, created.Status)
	assert.Nil(t, created.ReturnedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A second borrow while a loan is still open is refused before any write.
func TestBorrowRejectsOpenLoan(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"BORROWED", false, nil, nil, "", now, now))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `loans`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Borrow(context.Background(), loan.BorrowInput{
		ItemID: "i1",
		UserID: "u2",
		DueAt:  now.Add(24 * time.Hour),
	}, "admin")
	assert.True(t, errors.Is(err, fault.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowRejectsHeldReservation(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"RESERVED", false, "u9", now, "", now, now))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Borrow(context.Background(), loan.BorrowInput{
		ItemID: "i1",
		UserID: "u2",
		DueAt:  now.Add(24 * time.Hour),
	}, "admin")
	assert.True(t, errors.Is(err, fault.ErrConflict))
}

func TestBorrowRejectsBadDueDate(t *testing.T) {
	db, _ := setupMockDB(t)
	svc := newService(db)

	_, err := svc.Borrow(context.Background(), loan.BorrowInput{
		ItemID: "i1",
		UserID: "u1",
		DueAt:  time.Now().Add(-time.Hour),
	}, "admin")
	assert.True(t, errors.Is(err, fault.ErrInvalidRange))
}

// Returning a loan with a confirmed reservation waiting moves the item
// to RESERVED for that reservation's user.
func TestReturnHoldsItemForNextReservation(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	borrowed := now.Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", borrowed, now.Add(24*time.Hour), nil, nil, "ACTIVE", "", now, now))
	mock.ExpectExec("UPDATE `loans` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"BORROWED", false, nil, nil, "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", borrowed, now.Add(24*time.Hour), now, "admin", "RETURNED", "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `reservations` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(reservationColumns).
			AddRow("r1", "i1", "u2", now.Add(24*time.Hour), now.Add(72*time.Hour), "CONFIRMED", now, now))
	mock.ExpectExec("UPDATE `items` SET").
		WithArgs(false, status.ItemReserved, sqlmock.AnyArg(), "u2", sqlmock.AnyArg(), "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `loan_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	returned, err := svc.Return(context.Background(), "l1", "admin")
	assert.NoError(t, err)
	assert.Equal(t, status.LoanReturned, returned.Status)
	assert.NotNil(t, returned.ReturnedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Returning an item with no reservations or scheduled loans frees it.
func TestReturnFreesItem(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	borrowed := now.Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", borrowed, now.Add(24*time.Hour), nil, nil, "ACTIVE", "", now, now))
	mock.ExpectExec("UPDATE `loans` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"BORROWED", false, nil, nil, "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", borrowed, now.Add(24*time.Hour), now, "admin", "RETURNED", "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `reservations` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectExec("UPDATE `items` SET").
		WithArgs(true, status.ItemAvailable, nil, nil, sqlmock.AnyArg(), "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `loan_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.Return(context.Background(), "l1", "admin")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A repeated return is a no-op; no writes happen on the second call.
func TestReturnIsIdempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	returnedAt := now.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", now.Add(-48*time.Hour), now.Add(-24*time.Hour),
				returnedAt, "admin", "RETURNED", "", now, now))
	mock.ExpectCommit()

	returned, err := svc.Return(context.Background(), "l1", "admin")
	assert.NoError(t, err)
	assert.Equal(t, status.LoanReturned, returned.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnUnknownLoan(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns))
	mock.ExpectRollback()

	_, err := svc.Return(context.Background(), "missing", "admin")
	assert.True(t, errors.Is(err, fault.ErrNotFound))
}

// The overdue filter and the per-row display status agree on the same
// clock reading.
func TestListOverdueLoans(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `loans`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `loans`").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", now.Add(-72*time.Hour), now.Add(-24*time.Hour),
				nil, nil, "ACTIVE", "", now, now))

	loans, total, err := svc.List(context.Background(), loan.Query{Filter: "overdue"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, loans, 1)
	assert.Equal(t, status.LoanOverdue, loans[0].Status)
}

func TestListRejectsUnknownFilter(t *testing.T) {
	db, _ := setupMockDB(t)
	svc := newService(db)

	_, _, err := svc.List(context.Background(), loan.Query{Filter: "stale"})
	assert.True(t, errors.Is(err, fault.ErrValidation))
}

// Two open loans on one item: the repair closes the later one and
// leaves the earliest standing.
func TestRepairItemClosesDuplicateLoans(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newService(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `items` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "EQ-001", "Projector", "EQUIPMENT", "",
				"BORROWED", false, nil, nil, "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `loans` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("l1", "i1", "u1", now.Add(-72*time.Hour), now.Add(24*time.Hour), nil, nil, "ACTIVE", "", now, now).
			AddRow("l2", "i1", "u2", now.Add(-24*time.Hour), now.Add(48*time.Hour), nil, nil, "ACTIVE", "", now, now))
	mock.ExpectQuery("SELECT \\* FROM `reservations` WHERE item_id = \\?").
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectExec("UPDATE `items` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `loans` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `loan_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	plan, err := svc.RepairItem(context.Background(), "i1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"l2"}, plan.DuplicateLoanIDs)
	assert.Equal(t, status.ItemBorrowed, plan.Desired)
	assert.NoError(t, mock.ExpectationsWereMet())
}
