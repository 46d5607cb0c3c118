package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate 失败: %v", err)
	}
	return db
}

func TestRecordAndRecentRuns(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "r1", StartedAt: base, Voice: "slt", Phones: 3, Status: "success", Elapsed: 120 * time.Millisecond},
		{ID: "r2", StartedAt: base.Add(time.Second), Voice: "slt", Status: "failed", ErrorKind: "MismatchError", ExitCode: 0},
		{ID: "r3", StartedAt: base.Add(1500 * time.Millisecond), Voice: "slt", Status: "failed", ErrorKind: "ProcessExecutionError", ExitCode: 3},
	}
	for _, r := range runs {
		if err := db.RecordRun(r); err != nil {
			t.Fatalf("RecordRun 失败: %v", err)
		}
	}

	got, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns 失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 条记录，得到 %d", len(got))
	}
	if got[0].ID != "r3" || got[1].ID != "r2" {
		t.Errorf("排序不正确: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].ExitCode != 3 || got[0].ErrorKind != "ProcessExecutionError" {
		t.Errorf("字段不匹配: %+v", got[0])
	}
	if !got[1].StartedAt.Equal(base.Add(time.Second)) {
		t.Errorf("StartedAt: got %v", got[1].StartedAt)
	}
}

func TestRecordRun_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	r := Run{ID: "same", StartedAt: time.Now(), Status: "success"}
	if err := db.RecordRun(r); err != nil {
		t.Fatalf("第一次 RecordRun 失败: %v", err)
	}
	if err := db.RecordRun(r); err == nil {
		t.Fatal("重复 ID 应返回错误")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("第二次 Migrate 失败: %v", err)
	}
	if db.Path() == "" {
		t.Error("Path 不应为空")
	}
}
