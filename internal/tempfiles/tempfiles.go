package tempfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Set 是一次合成调用使用的三个临时文件。
type Set struct {
	Label         string // 输入标注
	DurationLabel string // 引擎输出的带时长标注
	Wave          string // 引擎输出的波形

	once sync.Once
	err  error
}

// Allocate 在 dir 下创建三个唯一命名的空文件，dir 为空时使用系统临时目录。
// 文件名形如 <prefix>-<uuid>.lab，并发调用之间不会冲突。
// 任何一个文件创建失败时，已创建的文件会被删除。
func Allocate(dir, prefix string) (*Set, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if prefix == "" {
		prefix = "htsengine"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("创建临时目录 %s 失败: %w", dir, err)
	}

	base := filepath.Join(dir, prefix+"-"+uuid.NewString())
	set := &Set{
		Label:         base + ".lab",
		DurationLabel: base + ".lab_with_dur",
		Wave:          base + ".wav",
	}

	for _, p := range set.Paths() {
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			_ = set.Release()
			return nil, fmt.Errorf("创建临时文件 %s 失败: %w", p, err)
		}
		if err := f.Close(); err != nil {
			_ = set.Release()
			return nil, fmt.Errorf("关闭临时文件 %s 失败: %w", p, err)
		}
	}
	return set, nil
}

// Paths 返回三个文件路径。
func (s *Set) Paths() []string {
	return []string{s.Label, s.DurationLabel, s.Wave}
}

// Release 删除全部文件。可重复调用，只有第一次真正执行；
// 文件已不存在不算错误。
func (s *Set) Release() error {
	s.once.Do(func() {
		for _, p := range s.Paths() {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.err = multierr.Append(s.err, err)
			}
		}
	})
	return s.err
}
