package items

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO package_items \(id, data_type, data, file_name, mime_type, tags\)`).
		WithArgs("i1", "aml", []byte(`{"_code":"GDRIVE_TXT"}`), "article.aml", "application/vnd.google-apps.document", []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.PackageItem{
		ID:       "i1",
		DataType: "aml",
		Data:     map[string]any{"_code": "GDRIVE_TXT"},
		FileName: "article.aml",
		MimeType: "application/vnd.google-apps.document",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByVersion_DecodesPayloads(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "data_type", "data", "file_name", "mime_type", "tags"}).
		AddRow("i1", "aml", []byte(`{"title":"article.aml"}`), "article.aml", "text/plain", []byte(`["lead"]`)).
		AddRow("i2", "img", []byte(`{"title":"cover.jpg"}`), "cover.jpg", "image/jpeg", []byte(`[]`))
	mock.ExpectQuery(`SELECT .* FROM package_items i\s+JOIN package_version_items vi ON vi\.item_id = i\.id`).
		WithArgs("v1").
		WillReturnRows(rows)

	items, err := repo.ListByVersion(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 items, got %d", len(items))
	}
	if items[0].Data["title"] != "article.aml" || items[0].Tags[0] != "lead" {
		t.Fatalf("payload not decoded: %+v", items[0])
	}
}

func TestUpdateData_NoRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE package_items SET data=\$2`).
		WithArgs("i9", []byte(`{"src_large":"https://signed"}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateData(context.Background(), "i9", map[string]any{"src_large": "https://signed"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpdateData_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE package_items SET data=\$2`).
		WithArgs("i1", []byte(`{}`)).
		WillReturnError(errors.New("boom"))

	if err := repo.UpdateData(context.Background(), "i1", map[string]any{}); err == nil {
		t.Fatal("expected error")
	}
}
