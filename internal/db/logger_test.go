package db

import (
	"errors"
	"fmt"
	"ideafeed/internal/models"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type recordingWriter struct {
	lines []string
}

func (w *recordingWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	gdb, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := gdb.DB()
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	w := &recordingWriter{}
	quiet := gdb.Session(&gorm.Session{Logger: newLogger(w, false)})

	var post models.Post
	if err := quiet.Where("note_id = ?", 42).First(&post).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First err = %v, want ErrRecordNotFound", err)
	}
	if len(w.lines) != 0 {
		t.Errorf("record not found was logged: %q", w.lines)
	}

	var n int64
	if err := quiet.Raw("SELECT count(*) FROM no_such_table").Scan(&n).Error; err == nil {
		t.Fatal("query on missing table should fail")
	}
	if len(w.lines) == 0 {
		t.Error("real query errors should still be logged")
	}
}
